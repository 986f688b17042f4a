package router

import (
	"math/rand"
	"sort"
	"strings"

	"llmgate/internal/config"
	apierr "llmgate/internal/errors"
	"llmgate/internal/forward"
)

// PlannedRoute pairs a model route with its resolved upstream.
type PlannedRoute struct {
	Route    config.ModelRoute
	Upstream *config.Upstream
	// UpstreamModel is the model id sent upstream.
	UpstreamModel string
}

// Plan is the ordered forwarding strategy for one request.
type Plan struct {
	ModelID string
	Routes  []PlannedRoute
	// RetryOverride caps per-route attempts when fallbacks exist; zero
	// means use the configured retry policy.
	RetryOverride int
}

// LookupModel finds a model by id or display name, case-insensitively.
// "auto" selects every non-temporary model ordered by priority.
func LookupModel(s *config.Settings, name string) []config.ModelCfg {
	if strings.EqualFold(strings.TrimSpace(name), "auto") {
		var out []config.ModelCfg
		for _, m := range s.Models {
			if !m.IsTemporary {
				out = append(out, m)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
		return out
	}
	var out []config.ModelCfg
	for _, m := range s.Models {
		if strings.EqualFold(m.ID, name) || (m.DisplayName != "" && strings.EqualFold(m.DisplayName, name)) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// BuildPlan resolves a model name into an ordered route list. providerHint
// prefers candidate routes speaking one dialect; when the model has no route
// in that dialect the full route set is kept and the request is translated.
// Routes sharing a priority are shuffled within their group.
func BuildPlan(s *config.Settings, modelName string, providerHint forward.Provider) (*Plan, *apierr.APIError) {
	models := LookupModel(s, modelName)
	if len(models) == 0 {
		if m, ok := synthesizeGeminiModel(s, modelName, providerHint); ok {
			models = []config.ModelCfg{m}
		} else {
			return nil, apierr.ModelNotFound("model not found: " + modelName)
		}
	}

	planned := collectRoutes(s, models, providerHint)
	if len(planned) == 0 && providerHint != "" {
		planned = collectRoutes(s, models, "")
	}
	if len(planned) == 0 {
		return nil, apierr.UpstreamNotFound("no usable route for model: " + modelName)
	}

	shufflePriorityGroups(planned)

	plan := &Plan{ModelID: models[0].ID, Routes: planned}
	if !s.EnableRetryFallback && len(plan.Routes) > 1 {
		plan.Routes = plan.Routes[:1]
	}
	if len(plan.Routes) > 1 {
		// Fallbacks exist; spend at most one attempt per route instead of
		// burning the whole retry budget on the first.
		plan.RetryOverride = 1
	}
	return plan, nil
}

func collectRoutes(s *config.Settings, models []config.ModelCfg, providerHint forward.Provider) []PlannedRoute {
	var planned []PlannedRoute
	for _, m := range models {
		for _, r := range m.ResolvedRoutes() {
			if providerHint != "" && forward.ParseProvider(r.Provider) != providerHint {
				continue
			}
			up := s.UpstreamByID(r.UpstreamID)
			if up == nil {
				continue
			}
			upModel := r.UpstreamModelID
			if upModel == "" {
				upModel = m.ID
			}
			planned = append(planned, PlannedRoute{Route: r, Upstream: up, UpstreamModel: upModel})
		}
	}
	return planned
}

// synthesizeGeminiModel backs the Gemini path quirk: a model named only in
// the inbound path routes to the "gemini" upstream even when settings do not
// list it.
func synthesizeGeminiModel(s *config.Settings, modelName string, providerHint forward.Provider) (config.ModelCfg, bool) {
	if providerHint != forward.ProviderGemini || s.UpstreamByID("gemini") == nil {
		return config.ModelCfg{}, false
	}
	return config.ModelCfg{ID: modelName, Provider: "gemini", UpstreamID: "gemini"}, true
}

// shufflePriorityGroups keeps the priority-descending order but randomizes
// ties so equal-priority routes share load.
func shufflePriorityGroups(routes []PlannedRoute) {
	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].Route.Priority > routes[j].Route.Priority
	})
	start := 0
	for i := 1; i <= len(routes); i++ {
		if i == len(routes) || routes[i].Route.Priority != routes[start].Route.Priority {
			group := routes[start:i]
			rand.Shuffle(len(group), func(a, b int) { group[a], group[b] = group[b], group[a] })
			start = i
		}
	}
}
