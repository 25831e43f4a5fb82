package hardrules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// defaultPayerNames are the disbursing entities whose payroll is accepted:
// the departmental education secretariats and the national teacher funds.
var defaultPayerNames = []string{
	"SECRETARIA_EDUCACION_ANTIOQUIA",
	"SECRETARIA_EDUCACION_ATLANTICO",
	"SECRETARIA_EDUCACION_BOGOTA",
	"SECRETARIA_EDUCACION_BOLIVAR",
	"SECRETARIA_EDUCACION_BOYACA",
	"SECRETARIA_EDUCACION_CALDAS",
	"SECRETARIA_EDUCACION_CAQUETA",
	"SECRETARIA_EDUCACION_CASANARE",
	"SECRETARIA_EDUCACION_CAUCA",
	"SECRETARIA_EDUCACION_CESAR",
	"SECRETARIA_EDUCACION_CHOCO",
	"SECRETARIA_EDUCACION_CORDOBA",
	"SECRETARIA_EDUCACION_CUNDINAMARCA",
	"SECRETARIA_EDUCACION_GUAINIA",
	"SECRETARIA_EDUCACION_GUAVIARE",
	"SECRETARIA_EDUCACION_HUILA",
	"SECRETARIA_EDUCACION_LA_GUAJIRA",
	"SECRETARIA_EDUCACION_MAGDALENA",
	"SECRETARIA_EDUCACION_META",
	"SECRETARIA_EDUCACION_NARINO",
	"SECRETARIA_EDUCACION_NORTE_SANTANDER",
	"SECRETARIA_EDUCACION_PUTUMAYO",
	"SECRETARIA_EDUCACION_QUINDIO",
	"SECRETARIA_EDUCACION_RISARALDA",
	"SECRETARIA_EDUCACION_SAN_ANDRES",
	"SECRETARIA_EDUCACION_SANTANDER",
	"SECRETARIA_EDUCACION_SUCRE",
	"SECRETARIA_EDUCACION_TOLIMA",
	"SECRETARIA_EDUCACION_VALLE",
	"SECRETARIA_EDUCACION_VAUPES",
	"SECRETARIA_EDUCACION_VICHADA",
	"FONDO_NACIONAL_MAGISTERIO",
	"FIDUPREVISORA",
	"FOMAG",
}

var defaultPayers = NewPayerRegistry(defaultPayerNames)

// NormalizePayer uppercases a payer name and replaces spaces with underscores.
// Surrounding whitespace is not trimmed.
func NormalizePayer(name string) string {
	// A Caser keeps state and must not be shared between goroutines.
	upper := cases.Upper(language.Und).String(name)
	return strings.ReplaceAll(upper, " ", "_")
}

// PayerRegistry is the immutable allow-list of authorized payers.
type PayerRegistry struct {
	names map[string]struct{}
}

// NewPayerRegistry builds a registry from the given names, normalizing each.
func NewPayerRegistry(names []string) *PayerRegistry {
	r := &PayerRegistry{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		r.names[NormalizePayer(n)] = struct{}{}
	}
	return r
}

// DefaultPayers returns the built-in allow-list.
func DefaultPayers() *PayerRegistry {
	return defaultPayers
}

type payersFile struct {
	Payers []string `yaml:"payers"`
}

// LoadPayers reads an allow-list from a YAML file of the form:
//
//	payers:
//	  - FONDO_NACIONAL_MAGISTERIO
//	  - FOMAG
func LoadPayers(path string) (*PayerRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payers file: %w", err)
	}

	var f payersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse payers file %s: %w", path, err)
	}
	if len(f.Payers) == 0 {
		return nil, fmt.Errorf("payers file %s lists no payers", path)
	}

	return NewPayerRegistry(f.Payers), nil
}

// Authorized reports whether the normalized payer is in the allow-list.
func (r *PayerRegistry) Authorized(payer string) bool {
	_, ok := r.names[NormalizePayer(payer)]
	return ok
}

// Names returns the normalized payer names in sorted order.
func (r *PayerRegistry) Names() []string {
	out := make([]string, 0, len(r.names))
	for n := range r.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of authorized payers.
func (r *PayerRegistry) Len() int {
	return len(r.names)
}
