package researcher

import "strings"

// Mode names how SelectProviders fans a request out across the configured
// provider set.
type Mode string

const (
	ModeAutoSequential Mode = "auto_sequential"
	ModeSingle         Mode = "single"
	ModeParallel       Mode = "parallel"
)

// Selection is the resolved provider set plus fan-out mode for one request.
type Selection struct {
	Mode      Mode
	Providers []Provider
}

// SelectProviders resolves the `provider` request parameter against the
// configured set, per spec §4.4:
//   - "auto" or absent → AutoSequential
//   - a single provider name → Single
//   - comma-separated names → Parallel subset
//   - "all" or "*" → Parallel over all providers
func SelectProviders(requested string, available []Provider) Selection {
	byName := make(map[string]Provider, len(available))
	for _, p := range available {
		byName[p.Name()] = p
	}

	trimmed := strings.TrimSpace(requested)
	if trimmed == "" || strings.EqualFold(trimmed, "auto") {
		return Selection{Mode: ModeAutoSequential, Providers: available}
	}

	if trimmed == "*" || strings.EqualFold(trimmed, "all") {
		return Selection{Mode: ModeParallel, Providers: available}
	}

	if !strings.Contains(trimmed, ",") {
		if p, ok := byName[trimmed]; ok {
			return Selection{Mode: ModeSingle, Providers: []Provider{p}}
		}
		return Selection{Mode: ModeSingle, Providers: nil}
	}

	var subset []Provider
	for _, name := range strings.Split(trimmed, ",") {
		name = strings.TrimSpace(name)
		if p, ok := byName[name]; ok {
			subset = append(subset, p)
		}
	}
	return Selection{Mode: ModeParallel, Providers: subset}
}
