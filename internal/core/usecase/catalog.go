package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/ports"
)

// FallbackCatalogLabel is the reserved "no diagnosis" entry seeded with the default catalog.
const FallbackCatalogLabel = "Sin diagnóstico determinado"

var defaultCatalogLabels = []string{
	"Infección urinaria (cistitis)",
	"Uretritis (inflamación de la uretra)",
	"Pielonefritis aguda (infección renal)",
	"Cálculos renales (litiasis renal)",
	"Litiasis vesical (piedras en la vejiga)",
	"Insuficiencia renal aguda",
	"Insuficiencia renal crónica",
	"Glomerulonefritis (inflamación de los glomérulos)",
	"Nefropatía diabética",
	"Hidronefrosis (obstrucción del riñón)",
	"Cistitis intersticial",
	"Prostatitis (inflamación de la próstata)",
	"Retención urinaria aguda",
	"Enuresis (incontinencia urinaria)",
	"Nefrolitiasis recurrente",
	"Hematuria microscópica",
	"Proteinuria (proteínas en la orina)",
	"Síndrome nefrótico",
	"Hipertensión secundaria a enfermedad renal",
	"Infección del tracto urinario recurrente",
	"Obstrucción ureteral por cálculo",
	"Nefritis tubulointersticial",
	"Cistitis hemorrágica",
	"Uropatía obstructiva congénita",
	"Incontinencia urinaria de esfuerzo",
	"Incontinencia urinaria por urgencia",
	"Cálculo de urato (ácido úrico)",
	"Cálculo de oxalato de calcio",
	"Infección renal por bacterias resistentes",
	"Pielonefritis crónica",
	"Nefropatía por medicamentos (tóxica)",
	"Quistes renales simples o múltiples",
	FallbackCatalogLabel,
}

// DefaultCatalogLabels returns the built-in urinary and renal diagnosis list.
func DefaultCatalogLabels() []string {
	out := make([]string, len(defaultCatalogLabels))
	copy(out, defaultCatalogLabels)
	return out
}

// CatalogUseCase serves a process-wide read-only catalog snapshot. The snapshot is
// loaded on first use and replaced after every seed.
type CatalogUseCase struct {
	store    ports.CatalogStore
	loadMu   sync.Mutex
	snapshot atomic.Pointer[[]domain.CatalogEntry]
}

func NewCatalogUseCase(store ports.CatalogStore) *CatalogUseCase {
	return &CatalogUseCase{store: store}
}

// Entries returns the catalog in insertion order. Callers must not modify the slice.
func (uc *CatalogUseCase) Entries(ctx context.Context) ([]domain.CatalogEntry, error) {
	if entries := uc.snapshot.Load(); entries != nil {
		return *entries, nil
	}

	uc.loadMu.Lock()
	defer uc.loadMu.Unlock()
	if entries := uc.snapshot.Load(); entries != nil {
		return *entries, nil
	}
	return uc.reload(ctx)
}

// Refresh reloads the snapshot from the store.
func (uc *CatalogUseCase) Refresh(ctx context.Context) error {
	uc.loadMu.Lock()
	defer uc.loadMu.Unlock()
	_, err := uc.reload(ctx)
	return err
}

func (uc *CatalogUseCase) reload(ctx context.Context) ([]domain.CatalogEntry, error) {
	entries, err := uc.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if entries == nil {
		entries = []domain.CatalogEntry{}
	}
	uc.snapshot.Store(&entries)
	return entries, nil
}

// Seed inserts the labels that are not in the catalog yet. An empty list seeds the
// default catalog.
func (uc *CatalogUseCase) Seed(ctx context.Context, labels []string) (domain.SeedResult, error) {
	if len(labels) == 0 {
		labels = DefaultCatalogLabels()
	}
	clean := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		clean = append(clean, label)
	}
	if len(clean) == 0 {
		return domain.SeedResult{}, domain.WrapError(domain.ErrInvalidInput, "seed catalog", fmt.Errorf("no labels"))
	}

	inserted, err := uc.store.InsertMissing(ctx, clean)
	if err != nil {
		return domain.SeedResult{}, fmt.Errorf("seed catalog: %w", err)
	}
	if inserted == nil {
		inserted = []string{}
	}
	if err := uc.Refresh(ctx); err != nil {
		return domain.SeedResult{}, err
	}
	return domain.SeedResult{Inserted: inserted, Count: len(inserted)}, nil
}

// ResolveHint maps a caller hint onto a catalog entry. Ids must exist and labels
// must match exactly; anything else is invalid input.
func (uc *CatalogUseCase) ResolveHint(ctx context.Context, hint domain.DiagnosisHint) (domain.CatalogEntry, error) {
	entries, err := uc.Entries(ctx)
	if err != nil {
		return domain.CatalogEntry{}, err
	}
	switch hint.Kind {
	case domain.HintByID:
		for _, entry := range entries {
			if entry.ID == hint.ID {
				return entry, nil
			}
		}
		return domain.CatalogEntry{}, domain.WrapError(domain.ErrInvalidInput, "resolve diagnosis hint",
			fmt.Errorf("diagnosis id %d does not exist", hint.ID))
	case domain.HintByLabel:
		for _, entry := range entries {
			if entry.Label == hint.Label {
				return entry, nil
			}
		}
		return domain.CatalogEntry{}, domain.WrapError(domain.ErrInvalidInput, "resolve diagnosis hint",
			fmt.Errorf("diagnosis %q is not in the catalog", hint.Label))
	default:
		return domain.CatalogEntry{}, domain.WrapError(domain.ErrInvalidInput, "resolve diagnosis hint",
			fmt.Errorf("unknown hint kind %d", hint.Kind))
	}
}
