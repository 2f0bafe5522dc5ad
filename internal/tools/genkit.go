package tools

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// RegisterWithGenkit defines the registry's tools in Genkit so their
// names and input schemas can be offered to the model. During a query
// the agent runs with tool auto-execution disabled and dispatches
// requests through the Registry itself; the handlers here are the
// direct-invocation path and delegate to the same Registry.
func RegisterWithGenkit(g *genkit.Genkit, reg *Registry) []ai.ToolRef {
	var refs []ai.ToolRef

	if search, ok := reg.Lookup(SearchCourseContentName); ok {
		def := search.Definition()
		refs = append(refs, genkit.DefineTool(g, def.Name, def.Description,
			func(tc *ai.ToolContext, in SearchInput) (string, error) {
				args := map[string]any{"query": in.Query}
				if in.CourseName != "" {
					args["course_name"] = in.CourseName
				}
				if in.LessonNumber != nil {
					args["lesson_number"] = *in.LessonNumber
				}
				out, err := reg.Execute(tc, def.Name, args)
				if err != nil {
					return "", err
				}
				return out.Text, nil
			}))
	}

	return refs
}
