package module

import "testing"

func TestDefine_DefaultsConfigKeyToName(t *testing.T) {
	m := Define(Meta{Name: "cart"}, func(Options, *Builder) error { return nil })
	if got := m.Meta().ConfigKey; got != "cart" {
		t.Fatalf("ConfigKey = %q, want %q", got, "cart")
	}
}

func TestDefine_PanicsOnEmptyName(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Define() expected panic for empty name, got none")
		}
	}()
	_ = Define(Meta{Name: " "}, func(Options, *Builder) error { return nil })
}

func TestDefine_PanicsOnNilSetup(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Define() expected panic for nil setup, got none")
		}
	}()
	_ = Define(Meta{Name: "x"}, nil)
}

func TestOptions_String(t *testing.T) {
	opts := Options{"theme": "dark", "count": 3}
	if got := opts.String("theme"); got != "dark" {
		t.Errorf("String(theme) = %q, want %q", got, "dark")
	}
	if got := opts.String("count"); got != "" {
		t.Errorf("String(count) = %q, want empty", got)
	}
	if got := Options(nil).String("missing"); got != "" {
		t.Errorf("String on nil Options = %q, want empty", got)
	}
}

func TestParseDuplicatePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    DuplicatePolicy
		wantErr bool
	}{
		{"", DuplicateReject, false},
		{"ignore", DuplicateIgnore, false},
		{" Override ", DuplicateOverride, false},
		{"reject", DuplicateReject, false},
		{"merge", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDuplicatePolicy(tt.in, DuplicateReject)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDuplicatePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseDuplicatePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := Define(Meta{Name: "a"}, func(Options, *Builder) error { return nil })
	b := Define(Meta{Name: "b"}, func(Options, *Builder) error { return nil })

	if err := r.Register(b); err != nil {
		t.Fatalf("Register(b): %v", err)
	}
	if err := r.Register(a); err != nil {
		t.Fatalf("Register(a): %v", err)
	}
	if err := r.Register(a); err == nil {
		t.Fatal("Register(a) twice: expected error, got nil")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("Register(nil): expected error, got nil")
	}

	if _, ok := r.Get("a"); !ok {
		t.Error("Get(a) not found")
	}
	if _, ok := r.Get("zzz"); ok {
		t.Error("Get(zzz) found, want missing")
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}
}
