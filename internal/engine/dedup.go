package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/contacts"
	"github.com/rememberme/rememberme/internal/model"
	"github.com/rememberme/rememberme/internal/store"
)

// FindDuplicates groups a user's active persons that look like the same
// person.
func (e *Engine) FindDuplicates(userID string) ([]contacts.DuplicateGroup, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	persons, err := e.DB.ListPersons(userID, store.PersonFilter{})
	if err != nil {
		return nil, err
	}
	return contacts.FindPotentialDuplicates(persons), nil
}

// MergeDuplicates folds duplicateIDs into keeperID.
func (e *Engine) MergeDuplicates(ctx context.Context, userID, keeperID string, duplicateIDs []string) (*model.Person, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	_, span := tracer.Start(ctx, "engine.MergeDuplicates", trace.WithAttributes(
		attribute.String("keeper.id", keeperID),
		attribute.Int("duplicates", len(duplicateIDs)),
	))
	defer span.End()

	p, err := e.DB.MergePersons(userID, keeperID, duplicateIDs)
	if err != nil {
		return nil, err
	}
	e.Metrics.MergePerformed()
	e.Logger.Info("merged duplicates",
		zap.String("user", userID),
		zap.String("keeper", keeperID),
		zap.Strings("removed", duplicateIDs))
	return p, nil
}

// Dedup merges every duplicate group into its suggested keeper and returns
// how many persons were removed. A failing group is logged and skipped.
func (e *Engine) Dedup(ctx context.Context, userID string) (int, error) {
	groups, err := e.FindDuplicates(userID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, g := range groups {
		ids := make([]string, 0, len(g.Duplicates))
		for _, d := range g.Duplicates {
			ids = append(ids, d.Person.ID)
		}
		if _, err := e.MergeDuplicates(ctx, userID, g.Keeper.ID, ids); err != nil {
			e.Logger.Warn("dedup: merge failed", zap.String("keeper", g.Keeper.ID), zap.Error(err))
			continue
		}
		removed += len(ids)
	}
	return removed, nil
}
