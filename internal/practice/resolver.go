package practice

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"

	"psikoadmin/internal/auth"
	"psikoadmin/internal/questionset"
)

// CandidatePageSize is well above any limit offered to users so there is
// enough material left after client-side filtering.
const CandidatePageSize = 1000

type SetStore interface {
	FetchCandidateSets(ctx context.Context, q questionset.CandidateQuery) ([]questionset.QuestionSet, error)
	FetchSetByID(ctx context.Context, id string) (*questionset.QuestionSet, error)
	SaveSetEdits(ctx context.Context, id string, patch questionset.Patch) error
}

type TopicSource interface {
	TopicsFor(ctx context.Context, subcategory string) ([]string, error)
}

type ResolverConfig struct {
	PageSize int
	// IntN returns a uniform int in [0,n). Defaults to math/rand/v2.
	IntN func(n int) int
}

type Resolver struct {
	store    SetStore
	topics   TopicSource
	pageSize int
	intN     func(n int) int
}

func NewResolver(store SetStore, topics TopicSource, cfg ResolverConfig) *Resolver {
	if cfg.PageSize <= 0 {
		cfg.PageSize = CandidatePageSize
	}
	if cfg.IntN == nil {
		cfg.IntN = rand.IntN
	}
	return &Resolver{
		store:    store,
		topics:   topics,
		pageSize: cfg.PageSize,
		intN:     cfg.IntN,
	}
}

// Resolve turns filters into the ordered working set of a session. An empty
// result is not an error; a failed fetch is reported as ErrFetchFailed.
func (r *Resolver) Resolve(ctx context.Context, p auth.Principal, f ExamFilters) ([]PracticeQuestion, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	f = f.normalized()

	sets, err := r.store.FetchCandidateSets(ctx, coarseQuery(f, r.pageSize))
	if err != nil {
		log.Printf("practice: candidate fetch failed subject=%s categories=%s err=%v", p.Subject, strings.Join(f.Categories, ","), err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	kept, err := r.refine(ctx, sets, f)
	if err != nil {
		log.Printf("practice: topic lookup failed subject=%s err=%v", p.Subject, err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	r.shuffle(kept)

	out := Flatten(kept)
	if !f.Limit.IsAll() && len(out) > int(f.Limit) {
		out = out[:int(f.Limit)]
	}
	log.Printf("practice: resolved subject=%s fetched=%d kept=%d questions=%d", p.Subject, len(sets), len(kept), len(out))
	return out, nil
}

// coarseQuery pushes down only what the store can filter exactly: a single
// category, a single difficulty and the sub-category list.
func coarseQuery(f ExamFilters, pageSize int) questionset.CandidateQuery {
	q := questionset.CandidateQuery{
		Limit:         pageSize,
		SortField:     "created_at",
		SortDir:       "desc",
		Subcategories: f.Subcategories,
	}
	if len(f.Categories) == 1 {
		q.Category = f.Categories[0]
	}
	if len(f.Difficulties) == 1 {
		q.Difficulty = f.Difficulties[0]
	}
	return q
}

func (r *Resolver) refine(ctx context.Context, sets []questionset.QuestionSet, f ExamFilters) ([]questionset.QuestionSet, error) {
	categories := toSet(f.Categories)
	subcategories := toSet(f.Subcategories)
	difficulties := toSet(f.Difficulties)
	selectedTopics := toSet(f.Topics)
	active := make(map[string]map[string]struct{})

	out := make([]questionset.QuestionSet, 0, len(sets))
	for _, set := range sets {
		if _, ok := categories[strings.TrimSpace(set.Category)]; !ok {
			continue
		}
		if len(subcategories) > 0 {
			if _, ok := subcategories[strings.TrimSpace(set.Subcategory)]; !ok {
				continue
			}
		}
		if len(difficulties) > 0 {
			if _, ok := difficulties[strings.ToLower(strings.TrimSpace(set.Difficulty))]; !ok {
				continue
			}
		}
		if len(selectedTopics) > 0 {
			sub := strings.TrimSpace(set.Subcategory)
			topics, cached := active[sub]
			if !cached {
				var err error
				if topics, err = r.activeTopics(ctx, sub, selectedTopics); err != nil {
					return nil, err
				}
				active[sub] = topics
			}
			if len(topics) > 0 {
				if _, ok := topics[strings.TrimSpace(set.Topic)]; !ok {
					continue
				}
			}
		}
		out = append(out, set)
	}
	return out, nil
}

// activeTopics is the intersection of the user's topics with the valid topics
// of one sub-category. Empty means topic filtering does not apply to it.
func (r *Resolver) activeTopics(ctx context.Context, subcategory string, selected map[string]struct{}) (map[string]struct{}, error) {
	if r.topics == nil {
		return nil, nil
	}
	valid, err := r.topics.TopicsFor(ctx, subcategory)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, t := range valid {
		if _, ok := selected[t]; ok {
			out[t] = struct{}{}
		}
	}
	return out, nil
}

// shuffle is a Fisher-Yates shuffle over whole sets.
func (r *Resolver) shuffle(sets []questionset.QuestionSet) {
	for i := len(sets) - 1; i > 0; i-- {
		j := r.intN(i + 1)
		sets[i], sets[j] = sets[j], sets[i]
	}
}
