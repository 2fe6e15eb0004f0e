package features

import (
	"fmt"

	"github.com/simp-lee/sitekit/internal/module"
)

// Home is the landing page.
func Home() module.Module {
	return feature("home",
		module.Page{Name: "HomePage", Path: "/", File: "HomePage.md"},
	)
}

// AiInterview is the AI mock-interview feature.
func AiInterview() module.Module {
	return feature("aiInterview",
		module.Page{Name: "AiInterviewPage", Path: "/ai-interview", File: "AiInterviewPage.html"},
		module.Page{Name: "AIInterviewLLMTestPage", Path: "/ai-interview/llmTest", File: "llmTest/AIInterviewLLMTestPage.html"},
	)
}

func Account() module.Module {
	return feature("account",
		module.Page{Name: "AccountMyPage", Path: "/account/mypage", File: "AccountMyPage.html"},
		module.Page{Name: "AccountWithdrawalPage", Path: "/account/withdrawal", File: "AccountWithdrawalPage.html"},
	)
}

func Authentication() module.Module {
	return feature("authentication",
		module.Page{Name: "LoginPage", Path: "/account/login", File: "LoginPage.html"},
	)
}

func NaverAuthentication() module.Module {
	return feature("naverAuthentication",
		module.Page{Name: "NaverLoginRedirectPage", Path: "/naver-authentication/login", File: "NaverLoginRedirectPage.html"},
	)
}

func GoogleAuthentication() module.Module {
	return feature("googleAuthentication",
		module.Page{Name: "GoogleLoginRedirectPage", Path: "/google-authentication/login", File: "GoogleLoginRedirectPage.html"},
	)
}

func Survey() module.Module {
	return feature("survey",
		module.Page{Name: "SurveyListPage", Path: "/survey/list", File: "SurveyListPage.html"},
		module.Page{Name: "SurveyReadPage", Path: "/survey/read/:surveyId", File: "SurveyReadPage.html"},
	)
}

func CompanyReport() module.Module {
	return feature("companyReport",
		module.Page{Name: "CompanyReportListPage", Path: "/companyReport/list", File: "CompanyReportListPage.html"},
		module.Page{Name: "CompanyReportReadPage", Path: "/companyReport/read/:companyReportId", File: "CompanyReportReadPage.md"},
	)
}

func Cart() module.Module {
	return feature("cart",
		module.Page{Name: "CartListPage", Path: "/cart/list", File: "CartListPage.html"},
	)
}

func Order() module.Module {
	return feature("order",
		module.Page{Name: "OrderListPage", Path: "/order/list", File: "OrderListPage.html"},
		module.Page{Name: "OrderReadPage", Path: "/order/read/:orderId", File: "OrderReadPage.html"},
	)
}

// Vuetify contributes no pages. Extra import dirs may be configured under
// the "vuetify" key.
func Vuetify() module.Module {
	return importsOnly("vuetify")
}

// Pinia registers the store directories, "stores" by default.
func Pinia() module.Module {
	return importsOnly("pinia", "stores")
}

// importsOnly builds a descriptor that registers the directories listed under
// its "import_dirs" option, falling back to defaults.
func importsOnly(name string, defaults ...string) module.Module {
	return module.Define(module.Meta{Name: name}, func(opts module.Options, b *module.Builder) error {
		dirs := defaults
		if raw, ok := opts["import_dirs"]; ok {
			set, err := stringList(raw)
			if err != nil {
				return err
			}
			dirs = set
		}
		for _, d := range dirs {
			b.RegisterImportDir(d)
		}
		return nil
	})
}

func stringList(raw any) ([]string, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("import_dirs must be a list, got %T", raw)
	}
	out := make([]string, 0, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("import_dirs[%d] must be a string, got %T", i, v)
		}
		out = append(out, s)
	}
	return out, nil
}

// Builtins returns every built-in descriptor, in the order the stock site
// declares them.
func Builtins() []module.Module {
	return []module.Module{
		Vuetify(),
		Pinia(),
		Home(),
		AiInterview(),
		Account(),
		Authentication(),
		NaverAuthentication(),
		Survey(),
		CompanyReport(),
		GoogleAuthentication(),
		Cart(),
		Order(),
	}
}

// RegisterBuiltins adds every built-in descriptor to reg.
func RegisterBuiltins(reg *module.Registry) error {
	for _, m := range Builtins() {
		if err := reg.Register(m); err != nil {
			return err
		}
	}
	return nil
}
