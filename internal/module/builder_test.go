package module

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceFS(files ...string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for _, f := range files {
		fsys[f] = &fstest.MapFile{Data: []byte("<p>" + f + "</p>")}
	}
	return fsys
}

func pageNames(pages []Page) []string {
	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.Name
	}
	return names
}

func pagesModule(name string, pages ...Page) Module {
	return Define(Meta{Name: name}, func(_ Options, b *Builder) error {
		b.RegisterPages(pages...)
		return nil
	})
}

func TestBuilder_PagesInModuleOrder(t *testing.T) {
	b := NewBuilder(BuilderConfig{Source: sourceFS("x.html", "y.html")})

	m1 := pagesModule("m1", Page{Name: "X", Path: "/x", File: "x.html"})
	m2 := pagesModule("m2", Page{Name: "Y", Path: "/y", File: "y.html"})

	require.NoError(t, b.Run(m1, nil))
	require.NoError(t, b.Run(m2, nil))

	res, err := b.Finish()
	require.NoError(t, err)

	assert.Equal(t, []Page{
		{Name: "X", Path: "/x", File: "x.html", Module: "m1"},
		{Name: "Y", Path: "/y", File: "y.html", Module: "m2"},
	}, res.Pages())
}

func TestBuilder_ImportDirsAttributedToModule(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	b.Seed("config", func(b *Builder) { b.RegisterImportDir("stores") })

	m := Define(Meta{Name: "cart"}, func(_ Options, b *Builder) error {
		b.RegisterImportDir("cart/stores")
		return nil
	})
	require.NoError(t, b.Run(m, nil))

	res, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, []ImportDir{
		{Dir: "stores", Module: "config"},
		{Dir: "cart/stores", Module: "cart"},
	}, res.ImportDirs())
}

func TestBuilder_DuplicatePageRejectedByDefault(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	require.NoError(t, b.Run(pagesModule("a", Page{Name: "Home", Path: "/", File: "a.html"}), nil))
	require.NoError(t, b.Run(pagesModule("b", Page{Name: "Home", Path: "/home", File: "b.html"}), nil))

	_, err := b.Finish()
	require.ErrorIs(t, err, ErrDuplicatePage)

	var se *SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "b", se.Module)
	assert.Equal(t, "Home", se.Subject)
	assert.Contains(t, err.Error(), `"a"`)
}

func TestBuilder_DuplicatePagePolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   DuplicatePolicy
		wantPath []string
	}{
		{name: "ignore keeps first", policy: DuplicateIgnore, wantPath: []string{"/", "/other"}},
		{name: "override replaces in place", policy: DuplicateOverride, wantPath: []string{"/home", "/other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(BuilderConfig{Pages: tt.policy})
			require.NoError(t, b.Run(pagesModule("a",
				Page{Name: "Home", Path: "/", File: "a.html"},
				Page{Name: "Other", Path: "/other", File: "o.html"},
			), nil))
			require.NoError(t, b.Run(pagesModule("b", Page{Name: "Home", Path: "/home", File: "b.html"}), nil))

			res, err := b.Finish()
			require.NoError(t, err)

			var paths []string
			for _, p := range res.Pages() {
				paths = append(paths, p.Path)
			}
			assert.Equal(t, tt.wantPath, paths)
		})
	}
}

func TestBuilder_DuplicateImportDirs(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	b.Seed("config", func(b *Builder) { b.RegisterImportDir("stores") })
	b.Seed("config", func(b *Builder) { b.RegisterImportDir("./stores") })

	res, err := b.Finish()
	require.NoError(t, err)
	assert.Len(t, res.ImportDirs(), 1)

	strict := NewBuilder(BuilderConfig{ImportDirs: DuplicateReject})
	strict.Seed("config", func(b *Builder) { b.RegisterImportDir("stores") })
	strict.Seed("other", func(b *Builder) { b.RegisterImportDir("stores") })
	_, err = strict.Finish()
	assert.ErrorIs(t, err, ErrDuplicateImportDir)
}

func TestBuilder_UnresolvedFileFailsFast(t *testing.T) {
	b := NewBuilder(BuilderConfig{Source: sourceFS("present.html")})
	require.NoError(t, b.Run(pagesModule("survey", Page{Name: "Survey", Path: "/survey", File: "survey/pages/Missing.html"}), nil))

	_, err := b.Finish()
	require.ErrorIs(t, err, ErrUnresolvedFile)

	var se *SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "survey", se.Module)
	assert.Equal(t, "survey/pages/Missing.html", se.Subject)
}

func TestBuilder_FileEscapingSourceIsUnresolved(t *testing.T) {
	b := NewBuilder(BuilderConfig{Source: sourceFS("a.html")})
	require.NoError(t, b.Run(pagesModule("evil", Page{Name: "Evil", Path: "/e", File: "../secret.html"}), nil))

	_, err := b.Finish()
	assert.ErrorIs(t, err, ErrUnresolvedFile)
}

func TestBuilder_InvalidPage(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	require.NoError(t, b.Run(pagesModule("broken", Page{Name: "NoPath", File: "a.html"}), nil))

	_, err := b.Finish()
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestBuilder_PathSyntaxNotValidated(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	require.NoError(t, b.Run(pagesModule("loose", Page{Name: "Loose", Path: "no-leading-slash", File: "a.html"}), nil))

	res, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, "no-leading-slash", res.Pages()[0].Path)
}

func TestBuilder_HookSeesEarlierPages(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	require.NoError(t, b.Run(pagesModule("first", Page{Name: "A", Path: "/a", File: "a.html"}), nil))

	var seen int
	counter := Define(Meta{Name: "counter"}, func(_ Options, b *Builder) error {
		b.ExtendPages(func(pages *PageList) error {
			seen = pages.Len()
			pages.Push(Page{Name: "B", Path: "/b", File: "b.html"})
			return nil
		})
		return nil
	})
	require.NoError(t, b.Run(counter, nil))

	res, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
	assert.Equal(t, []string{"A", "B"}, pageNames(res.Pages()))
	assert.Equal(t, "counter", res.Pages()[1].Module)
}

func TestBuilder_HookErrorNamesModule(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	boom := errors.New("boom")
	m := Define(Meta{Name: "faulty"}, func(_ Options, b *Builder) error {
		b.ExtendImportDirs(func(*DirList) error { return boom })
		return nil
	})
	require.NoError(t, b.Run(m, nil))

	_, err := b.Finish()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `module "faulty"`)
	assert.Contains(t, err.Error(), HookImportsDirs)
}

func TestBuilder_SetupErrorWrapped(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	boom := errors.New("setup failed")
	err := b.Run(Define(Meta{Name: "bad"}, func(Options, *Builder) error { return boom }), nil)

	var se *SetupError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "bad", se.Module)
	assert.ErrorIs(t, err, boom)
}

func TestBuilder_FinishConsumesBuilder(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	_, err := b.Finish()
	require.NoError(t, err)

	_, err = b.Finish()
	assert.ErrorIs(t, err, ErrBuilderFinished)
	assert.ErrorIs(t, b.Run(pagesModule("late"), nil), ErrBuilderFinished)
}

func TestBuilder_ResultIsACopy(t *testing.T) {
	b := NewBuilder(BuilderConfig{})
	require.NoError(t, b.Run(pagesModule("m", Page{Name: "A", Path: "/a", File: "a.html"}), nil))
	res, err := b.Finish()
	require.NoError(t, err)

	pages := res.Pages()
	pages[0].Name = "mutated"
	assert.Equal(t, "A", res.Pages()[0].Name)
}

// Running the same descriptor twice is not guarded by the builder. The
// duplicate page policy is the only thing that notices.
func TestBuilder_SetupTwiceIsNotGuarded(t *testing.T) {
	m := pagesModule("twice", Page{Name: "T", Path: "/t", File: "t.html"})

	lenient := NewBuilder(BuilderConfig{Pages: DuplicateIgnore})
	require.NoError(t, lenient.Run(m, nil))
	require.NoError(t, lenient.Run(m, nil))
	res, err := lenient.Finish()
	require.NoError(t, err)
	assert.Len(t, res.Pages(), 1)

	strict := NewBuilder(BuilderConfig{})
	require.NoError(t, strict.Run(m, nil))
	require.NoError(t, strict.Run(m, nil))
	_, err = strict.Finish()
	assert.ErrorIs(t, err, ErrDuplicatePage)
}
