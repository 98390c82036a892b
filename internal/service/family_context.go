package service

import (
	"context"
	"fmt"

	"dreamlets-server/internal/models"
	"dreamlets-server/internal/repository"
)

// BuildFamilyContext resolves the kids and characters referenced by a
// generation request against the owner's profile. Ids that do not
// resolve to an owned record are dropped rather than rejected, since
// clients pre-filter their pickers but can race a deletion. A request
// whose kids all fail to resolve cannot produce a story and fails.
func BuildFamilyContext(ctx context.Context, store repository.ProfileStore, owner models.Owner, req models.GenerationRequest) (models.FamilyContext, error) {
	var fam models.FamilyContext

	kids, err := store.KidsByIDs(ctx, owner, req.KidIDs)
	if err != nil {
		return fam, fmt.Errorf("failed to resolve kids: %w", err)
	}
	if len(kids) == 0 {
		return fam, fmt.Errorf("%w: no requested kid exists", models.ErrNotFound)
	}

	characters, err := store.CharactersByIDs(ctx, owner, req.CharacterIDs)
	if err != nil {
		return fam, fmt.Errorf("failed to resolve characters: %w", err)
	}

	fam.Kids = kids
	fam.Characters = characters
	for _, kid := range kids {
		fam.KidNames = append(fam.KidNames, kid.Name)
	}
	for _, ch := range characters {
		fam.CharacterNames = append(fam.CharacterNames, ch.Name)
	}
	return fam, nil
}
