package client

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Guyuepp/engagement-sync/domain"
)

// SnapshotSeeder atomically filters out subjects with an in-flight toggle
// and writes the rest into the cache; satisfied by *Controller.
type SnapshotSeeder interface {
	SeedSettled(snaps []domain.EngagementSnapshot)
}

// SnapshotLoader fetches engagement snapshots in bulk; satisfied by
// *SyncClient.
type SnapshotLoader interface {
	FetchSnapshots(ctx context.Context, refs []domain.SubjectRef) ([]domain.EngagementSnapshot, error)
}

// Bootstrapper seeds the StateCache from server-provided snapshots, either
// the ones already embedded in a content payload (Seed) or fetched from the
// bulk endpoint (LoadAndSeed). Seeding a subject with a pending toggle is a
// no-op for that subject: the server snapshot predates the optimistic value
// and must not win over it.
type Bootstrapper struct {
	cache  *StateCache
	seeder SnapshotSeeder
	loader SnapshotLoader
}

// NewBootstrapper will create a bootstrapper; seeder may be nil when no
// controller issues toggles, loader may be nil when only Seed is used.
func NewBootstrapper(cache *StateCache, seeder SnapshotSeeder, loader SnapshotLoader) *Bootstrapper {
	return &Bootstrapper{
		cache:  cache,
		seeder: seeder,
		loader: loader,
	}
}

// Seed writes the given snapshots into the cache, skipping any subject that
// has a toggle in flight. The skip happens inside the controller so a toggle
// starting concurrently with the seed cannot be overwritten.
func (b *Bootstrapper) Seed(snaps []domain.EngagementSnapshot) {
	if b.seeder != nil {
		b.seeder.SeedSettled(snaps)
		return
	}
	b.cache.SeedMany(snaps)
}

// LoadAndSeed fetches snapshots for the given subjects from the engagement
// service and seeds them, fanning out one request per subject kind.
func (b *Bootstrapper) LoadAndSeed(ctx context.Context, refs []domain.SubjectRef) error {
	if b.loader == nil || len(refs) == 0 {
		return nil
	}

	byKind := make(map[domain.SubjectKind][]domain.SubjectRef)
	for _, ref := range refs {
		byKind[ref.Kind] = append(byKind[ref.Kind], ref)
	}

	g, ctx := errgroup.WithContext(ctx)
	results := make(chan []domain.EngagementSnapshot, len(byKind))
	for _, batch := range byKind {
		batch := batch
		g.Go(func() error {
			snaps, err := b.loader.FetchSnapshots(ctx, batch)
			if err != nil {
				return err
			}
			results <- snaps
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	close(results)

	var all []domain.EngagementSnapshot
	for snaps := range results {
		all = append(all, snaps...)
	}
	b.Seed(all)
	return nil
}
