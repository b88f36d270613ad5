// Package library loads the catalogue of configured libraries and the
// user's accounts from json5 files.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"opacbridge/internal/backend"
	"opacbridge/internal/components/assert"
	"opacbridge/internal/components/telemetry"
	"opacbridge/internal/opac"
	"opacbridge/pkg/configutil"
	"opacbridge/pkg/textutil"
)

const (
	report_library_load  = "library.load"
	report_accounts_load = "accounts.load"
)

// AccountsFile is the name of the accounts file inside the config dir.
const AccountsFile = "accounts.json5"

type libraryConfig struct {
	Api   string         `json:"api"`
	City  string         `json:"city"`
	Title string         `json:"title"`
	Group string         `json:"group"`
	Geo   []float64      `json:"geo"`
	Data  map[string]any `json:"data"`
}

type accountConfig struct {
	Id       string `json:"id"`
	Library  string `json:"library"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Label    string `json:"label"`
}

type accountsConfig struct {
	Accounts []accountConfig `json:"accounts"`
}

// Catalogue is the set of libraries an adapter is registered for, keyed by
// ident. It is read only after Load.
type Catalogue struct {
	idents    []string
	libraries map[string]opac.Library
}

func fromConfig(ident string, cfg libraryConfig, tel telemetry.API) opac.Library {
	lib := opac.Library{
		Ident: ident,
		API:   cfg.Api,
		City:  cfg.City,
		Title: cfg.Title,
		Group: cfg.Group,
		Data:  cfg.Data,
	}
	if lib.Data == nil {
		lib.Data = map[string]any{}
	}
	switch len(cfg.Geo) {
	case 0:
	case 2:
		lib.Geo = &opac.Geo{Lat: cfg.Geo[0], Lon: cfg.Geo[1]}
	default:
		tel.ReportWarning(report_library_load, fmt.Errorf("geo needs exactly two values"), ident, cfg.Geo)
	}
	return lib
}

// Load reads every `<ident>.json5` in dir. Libraries whose api no adapter in
// registry implements are skipped with a warning, a directory with no usable
// library is an error.
func Load(dir string, registry *backend.Registry, tel telemetry.API) (Catalogue, error) {
	assert.NotNil(registry)
	assert.NotNil(tel)

	names, configs, err := configutil.ReadDir[libraryConfig](dir, "json5")
	if err != nil {
		return Catalogue{}, fmt.Errorf("read libraries: %w", err)
	}

	catalogue := Catalogue{libraries: map[string]opac.Library{}}
	for _, ident := range names {
		// the accounts file shares the directory
		if ident+".json5" == AccountsFile {
			continue
		}
		lib := fromConfig(ident, configs[ident], tel)
		if !registry.Supports(lib) {
			tel.ReportWarning(report_library_load, fmt.Errorf("no adapter for api %q", lib.API), ident)
			continue
		}
		catalogue.idents = append(catalogue.idents, ident)
		catalogue.libraries[ident] = lib
	}
	if len(catalogue.idents) == 0 {
		return Catalogue{}, fmt.Errorf("no usable library in %s", dir)
	}
	return catalogue, nil
}

func (c Catalogue) Get(ident string) (opac.Library, bool) {
	lib, ok := c.libraries[ident]
	return lib, ok
}

// All returns the libraries sorted by ident.
func (c Catalogue) All() []opac.Library {
	out := make([]opac.Library, len(c.idents))
	for i, ident := range c.idents {
		out[i] = c.libraries[ident]
	}
	return out
}

// Find returns the libraries whose ident, city or title contains text,
// ignoring case and whitespace.
func (c Catalogue) Find(text string) []opac.Library {
	matchers := []string{textutil.NormalizeName(text)}
	var out []opac.Library
	for _, lib := range c.All() {
		if textutil.MatchName(lib.Ident, matchers) ||
			textutil.MatchName(lib.City, matchers) ||
			textutil.MatchName(lib.Title, matchers) {
			out = append(out, lib)
		}
	}
	return out
}

// Groups returns the library idents per group, libraries without a group
// are listed under "".
func (c Catalogue) Groups() map[string][]string {
	groups := map[string][]string{}
	for _, ident := range c.idents {
		group := c.libraries[ident].Group
		groups[group] = append(groups[group], ident)
	}
	return groups
}

// LoadAccounts reads the accounts file in dir, a missing file means no
// accounts. Accounts of libraries not in the catalogue are dropped with a
// warning, ids must be unique.
func (c Catalogue) LoadAccounts(dir string, tel telemetry.API) ([]opac.Account, error) {
	cfg, err := configutil.ReadConfig[accountsConfig](filepath.Join(dir, AccountsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}

	seen := map[string]bool{}
	var accounts []opac.Account
	for i, a := range cfg.Accounts {
		if a.Id == "" {
			return nil, fmt.Errorf("account #%d has no id", i+1)
		}
		if seen[a.Id] {
			return nil, fmt.Errorf("account id %q is used twice", a.Id)
		}
		seen[a.Id] = true
		if _, ok := c.libraries[a.Library]; !ok {
			tel.ReportWarning(report_accounts_load, fmt.Errorf("unknown library %q", a.Library), a.Id)
			continue
		}
		accounts = append(accounts, opac.Account{
			ID:       a.Id,
			Library:  a.Library,
			Name:     a.Name,
			Password: a.Password,
			Label:    a.Label,
		})
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Library < accounts[j].Library
	})
	return accounts, nil
}

// FindAccount returns the account with id, or the only account of library
// when id is empty.
func FindAccount(accounts []opac.Account, library, id string) (opac.Account, error) {
	var candidates []opac.Account
	for _, a := range accounts {
		if id != "" && a.ID == id {
			return a, nil
		}
		if id == "" && a.Library == library {
			candidates = append(candidates, a)
		}
	}
	switch {
	case id != "":
		return opac.Account{}, fmt.Errorf("no account with id %q", id)
	case len(candidates) == 1:
		return candidates[0], nil
	case len(candidates) == 0:
		return opac.Account{}, opac.NewOpacError(opac.ReasonNotConfigured, "there is no account for this library")
	}
	return opac.Account{}, fmt.Errorf("library %s has %d accounts, pick one by id", library, len(candidates))
}
