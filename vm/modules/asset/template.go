package asset

import (
	"errors"
	"fmt"

	"github.com/tolelom/purgechain/core"
	"github.com/tolelom/purgechain/game"
)

// GameTemplates are the asset classes the game mints.
var GameTemplates = []core.AssetTemplate{
	{
		ID:        game.TemplateGamepiece,
		Name:      "Gamepiece",
		Schema:    map[string]any{"level": "uint32", "traits": "[4]uint16"},
		Tradeable: true,
	},
	{
		ID:        game.TemplateTrophy,
		Name:      "Trophy",
		Schema:    map[string]any{"level": "uint32", "kind": "string"},
		Tradeable: true,
	},
}

// EnsureTemplates registers every game template missing from state with
// creator as registrant. Existing templates are left alone.
func EnsureTemplates(state core.State, creator string) error {
	for _, t := range GameTemplates {
		_, err := state.GetTemplate(t.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("check template %q: %w", t.ID, err)
		}
		tmpl := t
		tmpl.Creator = creator
		if err := state.SetTemplate(&tmpl); err != nil {
			return err
		}
	}
	return nil
}
