package backend

import (
	"context"
	"sort"
	"sync"
)

type int32Seq struct {
	current int32
	mutex   sync.Mutex
}

func (s *int32Seq) next() int32 {
	s.mutex.Lock()
	s.current++
	n := s.current
	s.mutex.Unlock()
	return n
}

type memorySubscription struct {
	id   int32
	url  string
	kind FeedKind
}

type memoryCheck struct {
	id             int32
	subscriptionID int32
	obs            Observation
}

type MemoryRepository struct {
	mutex       sync.Mutex
	subsIDSeq   int32Seq
	subsByID    map[int32]*memorySubscription
	subsByURL   map[string]*memorySubscription
	checksIDSeq int32Seq
	checks      []memoryCheck
}

func NewMemoryRepository() *MemoryRepository {
	repo := &MemoryRepository{}
	repo.subsByID = make(map[int32]*memorySubscription)
	repo.subsByURL = make(map[string]*memorySubscription)
	return repo
}

func (repo *MemoryRepository) Init(ctx context.Context) error {
	return nil
}

func (repo *MemoryRepository) GetMonitoredFeeds(ctx context.Context) ([]MonitoredFeed, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	latest := make(map[int32]memoryCheck)
	for _, c := range repo.checks {
		prev, ok := latest[c.subscriptionID]
		if !ok || !c.obs.CheckDate.Before(prev.obs.CheckDate) {
			latest[c.subscriptionID] = c
		}
	}

	feeds := make([]MonitoredFeed, 0, len(repo.subsByID))
	for _, s := range repo.subsByID {
		feed := MonitoredFeed{ID: s.id, URL: s.url, Kind: s.kind}
		if c, ok := latest[s.id]; ok {
			obs := copyObservation(c.obs)
			feed.LastCheck = &obs
		}
		feeds = append(feeds, feed)
	}

	sort.Slice(feeds, func(i, j int) bool { return feeds[i].ID < feeds[j].ID })

	return feeds, nil
}

func (repo *MemoryRepository) AddSub(ctx context.Context, url string, kind FeedKind) (int32, error) {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if _, ok := repo.subsByURL[url]; ok {
		return 0, DuplicationError{Field: "url"}
	}

	s := &memorySubscription{id: repo.subsIDSeq.next(), url: url, kind: kind}
	repo.subsByID[s.id] = s
	repo.subsByURL[s.url] = s

	return s.id, nil
}

func (repo *MemoryRepository) AddCheck(ctx context.Context, feed MonitoredFeed, obs Observation) error {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	if _, ok := repo.subsByID[feed.ID]; !ok {
		return ErrNotFound
	}

	repo.checks = append(repo.checks, memoryCheck{
		id:             repo.checksIDSeq.next(),
		subscriptionID: feed.ID,
		obs:            copyObservation(obs),
	})

	return nil
}

// CheckCount returns the number of checks stored for feedID.
func (repo *MemoryRepository) CheckCount(feedID int32) int {
	repo.mutex.Lock()
	defer repo.mutex.Unlock()

	n := 0
	for _, c := range repo.checks {
		if c.subscriptionID == feedID {
			n++
		}
	}
	return n
}

func copyObservation(src Observation) Observation {
	obs := src
	obs.PubDate = copyString(src.PubDate)
	obs.LastArticleTitle = copyString(src.LastArticleTitle)
	obs.LastArticleGUID = copyString(src.LastArticleGUID)
	obs.LastArticlePubDate = copyString(src.LastArticlePubDate)
	obs.LastArticleHash = copyString(src.LastArticleHash)
	return obs
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	return newString(*s)
}
