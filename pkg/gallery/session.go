package gallery

import (
	"PICs_Gallery/internal/models"
	"PICs_Gallery/pkg/ordering"
	"PICs_Gallery/pkg/paginator"
	"context"
	"sync"
)

// PageView 是一页的显示内容。
type PageView struct {
	Photos      []models.Photo `json:"data"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalItems  int            `json:"totalItems"`
	Category    string         `json:"category"`
	Algorithm   string         `json:"algorithm"`
}

// Session 是一个设备的浏览状态：当前分类、当前排序结果和页码。
// 排序结果只在切换分类、重新打乱或快照重新加载时更新，翻页期间保持稳定。
type Session struct {
	mu         sync.Mutex
	svc        *Service
	deviceID   string
	category   string
	algorithm  string
	generation uint64
	ordered    bool
	pager      *paginator.Paginator[models.Photo]
}

func newSession(svc *Service, deviceID string) *Session {
	return &Session{
		svc:      svc,
		deviceID: deviceID,
		category: CategoryAll,
		pager:    paginator.New[models.Photo](nil, svc.pageSize),
	}
}

func (s *Session) DeviceID() string { return s.deviceID }

// algorithmFor 决定分类对应的算法：popular 固定按热度；
// 指定了算法时使用它；否则 all 用默认算法，具体分类用 personalized。
func (s *Session) algorithmFor(category, requested string) string {
	switch {
	case category == CategoryPopular:
		return ordering.MostPopular
	case requested != "":
		return ordering.Resolve(requested)
	case category == CategoryAll || category == "":
		return s.svc.defaultAlgorithm
	default:
		return ordering.Personalized
	}
}

// FilterByCategory 切换分类，重新排序并回到第 1 页。
func (s *Session) FilterByCategory(ctx context.Context, category string) (PageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category == "" {
		category = CategoryAll
	}
	if err := s.reorderLocked(ctx, category, s.algorithmFor(category, "")); err != nil {
		return PageView{}, err
	}
	return s.viewLocked(), nil
}

// Shuffle 用指定算法 (为空时按分类的默认算法) 重新排序当前分类并回到第 1 页。
func (s *Session) Shuffle(ctx context.Context, algorithm string) (PageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reorderLocked(ctx, s.category, s.algorithmFor(s.category, algorithm)); err != nil {
		return PageView{}, err
	}
	return s.viewLocked(), nil
}

// View 返回指定页。分类或算法变化、或快照已重新加载时先重新排序。
// algorithm 为空表示沿用分类的默认算法；limit <= 0 表示沿用当前页大小。
func (s *Session) View(ctx context.Context, category, algorithm string, page, limit int) (PageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if category == "" {
		category = s.category
	}
	algo := s.algorithmFor(category, algorithm)
	if algorithm == "" && s.ordered && category == s.category {
		algo = s.algorithm
	}

	snap, err := s.svc.aggregator.LoadAll(ctx)
	if err != nil {
		return PageView{}, err
	}
	if !s.ordered || category != s.category || algo != s.algorithm || snap.Generation != s.generation {
		if err := s.reorderLocked(ctx, category, algo); err != nil {
			return PageView{}, err
		}
	}
	if limit > 0 && limit != s.pager.PageSize() {
		s.pager.SetPageSize(limit)
	}
	s.pager.GoTo(page)
	return s.viewLocked(), nil
}

func (s *Session) Next() PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.Next()
	return s.viewLocked()
}

func (s *Session) Prev() PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.Prev()
	return s.viewLocked()
}

func (s *Session) GoTo(page int) PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.GoTo(page)
	return s.viewLocked()
}

func (s *Session) Current() PageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) reorderLocked(ctx context.Context, category, algorithm string) error {
	snap, err := s.svc.aggregator.LoadAll(ctx)
	if err != nil {
		return err
	}
	subset := filter(snap.Photos, category)
	ordered := ordering.Order(subset, algorithm, s.svc.orderingContext(s.deviceID))

	s.category = category
	s.algorithm = algorithm
	s.generation = snap.Generation
	s.ordered = true
	s.pager.Reset(ordered)
	s.svc.logger.Debug("会话已重新排序", "device", s.deviceID, "category", category, "algorithm", algorithm, "photos", len(ordered))
	return nil
}

func (s *Session) viewLocked() PageView {
	photos := s.pager.Items()
	if photos == nil {
		photos = []models.Photo{}
	}
	return PageView{
		Photos:      photos,
		CurrentPage: s.pager.Current(),
		TotalPages:  s.pager.TotalPages(),
		TotalItems:  s.pager.TotalItems(),
		Category:    s.category,
		Algorithm:   s.algorithm,
	}
}

// filter 返回分类下的图片；all 和 popular 返回全部。
func filter(photos []models.Photo, category string) []models.Photo {
	if category == CategoryAll || category == CategoryPopular || category == "" {
		return photos
	}
	out := make([]models.Photo, 0, len(photos))
	for _, p := range photos {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
