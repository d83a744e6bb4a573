package template

import (
	"context"
	"fmt"
	"strings"

	"github.com/dripsheet/dripsheet/internal/model"
)

// NamePlaceholder is replaced with the contact's name when rendering.
const NamePlaceholder = "{name}"

// Key returns the store key for a campaign step, e.g. "0_EN".
func Key(lang model.Language, step int) string {
	return fmt.Sprintf("%d_%s", step, lang)
}

// Resolver renders the email body for a contact's next step.
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver backed by store.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve loads the template for (lang, step) and fills in contactName.
// Returns ErrTemplateNotFound when the campaign has no email for that step.
func (r *Resolver) Resolve(ctx context.Context, lang model.Language, step int, contactName string) (string, error) {
	raw, err := r.store.Load(ctx, Key(lang, step))
	if err != nil {
		return "", err
	}
	return Render(raw, contactName), nil
}

// Render substitutes the name placeholder. Any other {placeholder} is kept
// as written.
func Render(raw, contactName string) string {
	return strings.ReplaceAll(raw, NamePlaceholder, contactName)
}
