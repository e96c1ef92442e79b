package regulation

import (
	"fmt"
	"strings"
)

// Domain is a regulatory knowledge domain tag
type Domain string

const (
	EASA    Domain = "EASA"
	DEFSTAN Domain = "DEF-STAN"
	EDA     Domain = "EDA"
	FAA     Domain = "FAA"
	JSSG    Domain = "JSSG"
)

// BuiltinDomains lists the domains every catalog knows about, in routing order
var BuiltinDomains = []Domain{EASA, DEFSTAN, EDA, FAA, JSSG}

func (d Domain) String() string {
	return string(d)
}

// ParseDomain normalizes a user supplied tag. DEF-STAN accepts the common spellings.
func ParseDomain(v string) (Domain, error) {
	tag := strings.ToUpper(strings.TrimSpace(v))
	switch strings.NewReplacer("-", "", " ", "", "_", "").Replace(tag) {
	case "":
		return "", fmt.Errorf("empty domain tag")
	case "DEFSTAN":
		return DEFSTAN, nil
	}
	return Domain(tag), nil
}

// ParseDomains parses a list of tags, dropping duplicates but keeping order
func ParseDomains(values []string) ([]Domain, error) {
	ret := make([]Domain, 0, len(values))
	seen := make(map[Domain]struct{}, len(values))
	for _, v := range values {
		d, err := ParseDomain(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		ret = append(ret, d)
	}
	return ret, nil
}
