package manager

import "strings"

// AllDomains expands the requested domain set into the full SAN list
// a certificate should cover. Each input is kept, and a sibling is
// added so one logical site covers both its www and bare forms: a root
// domain (one dot) gains its "www." form, and a "www."-prefixed domain
// of the shape www.example.com gains the bare form. Order is preserved
// and duplicates are dropped.
func AllDomains(domain string, addonDomains []string) []string {
	requested := append([]string{domain}, addonDomains...)

	var all []string
	seen := map[string]bool{}
	add := func(d string) {
		if !seen[d] {
			seen[d] = true
			all = append(all, d)
		}
	}

	for _, d := range requested {
		add(d)
		switch strings.Count(d, ".") {
		case 1:
			add("www." + d)
		case 2:
			if strings.HasPrefix(d, "www.") {
				add(strings.TrimPrefix(d, "www."))
			}
		}
	}

	return all
}
