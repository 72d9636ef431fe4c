package probe

import "strings"

// Refiner rewrites a raw sysDescr string into something more specific
// before dictionary classification. It returns ok=false when it has
// nothing to contribute, letting the next refiner in the registry take a
// turn.
type Refiner interface {
	Refine(description string) (string, bool)
}

// RefinerFunc adapts a function to the Refiner interface.
type RefinerFunc func(string) (string, bool)

func (f RefinerFunc) Refine(description string) (string, bool) { return f(description) }

// DefaultRefiners is the built-in registry, tried in order; the first
// refiner to produce a result wins. Each vendor gets its own Refiner
// instead of a single switch, so new vendors can be appended without
// touching the classification loop.
func DefaultRefiners() []Refiner {
	return []Refiner{
		RefinerFunc(refineHPJetdirect),
		RefinerFunc(refineCiscoIOS),
		RefinerFunc(refineAironet),
	}
}

// refineHPJetdirect collapses the verbose "HP ETHERNET MULTI-ENVIRONMENT"
// Jetdirect banner down to a plain "HP Printer" description.
func refineHPJetdirect(description string) (string, bool) {
	if strings.Contains(strings.ToUpper(description), "JETDIRECT") {
		return "HP Printer", true
	}
	return "", false
}

// refineCiscoIOS extracts the model token out of a Cisco IOS banner, e.g.
// "Cisco IOS Software, C2960 Software (...)" -> "Cisco Catalyst C2960".
func refineCiscoIOS(description string) (string, bool) {
	upper := strings.ToUpper(description)
	if !strings.Contains(upper, "CISCO IOS") {
		return "", false
	}
	idx := strings.Index(upper, "C29")
	if idx == -1 {
		idx = strings.Index(upper, "C39")
	}
	if idx == -1 {
		return "Cisco IOS Device", true
	}
	end := idx
	for end < len(description) && description[end] != ' ' {
		end++
	}
	return "Cisco Catalyst " + description[idx:end], true
}

// refineAironet tags Cisco Aironet access points distinctly from switches.
func refineAironet(description string) (string, bool) {
	if strings.Contains(strings.ToUpper(description), "AIRONET") {
		return "Cisco Aironet Access Point", true
	}
	return "", false
}

// applyRefiners runs each refiner until one matches, returning the
// original description unchanged if none do.
func applyRefiners(description string, refiners []Refiner) string {
	for _, r := range refiners {
		if refined, ok := r.Refine(description); ok {
			return refined
		}
	}
	return description
}
