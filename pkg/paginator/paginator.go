package paginator

// TotalPages 返回总页数 (向上取整)。没有条目时也返回 1，仅用于显示。
func TotalPages(count, pageSize int) int {
	if pageSize <= 0 || count <= 0 {
		return 1
	}
	return (count + pageSize - 1) / pageSize
}

// Clamp 把页码限制在 [1, totalPages] 内。
func Clamp(page, count, pageSize int) int {
	if page < 1 {
		return 1
	}
	if total := TotalPages(count, pageSize); page > total {
		return total
	}
	return page
}

// Page 返回第 page 页 (从 1 开始) 的切片，页码先被限制在有效范围内。
// 返回的切片与 items 共享底层数组，调用方不应修改。
func Page[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items[:0:0]
	}
	page = Clamp(page, len(items), pageSize)
	start := (page - 1) * pageSize
	if start >= len(items) {
		return items[:0:0]
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end:end]
}

// Paginator 在一个有序集合上维护当前页。
type Paginator[T any] struct {
	items    []T
	pageSize int
	current  int
}

func New[T any](items []T, pageSize int) *Paginator[T] {
	return &Paginator[T]{items: items, pageSize: pageSize, current: 1}
}

// Reset 替换集合并回到第 1 页。切换分类或重新排序后调用。
func (p *Paginator[T]) Reset(items []T) {
	p.items = items
	p.current = 1
}

// SetPageSize 修改页大小并回到第 1 页。
func (p *Paginator[T]) SetPageSize(size int) {
	p.pageSize = size
	p.current = 1
}

func (p *Paginator[T]) Items() []T { return Page(p.items, p.current, p.pageSize) }

func (p *Paginator[T]) Current() int { return p.current }

func (p *Paginator[T]) TotalPages() int { return TotalPages(len(p.items), p.pageSize) }

func (p *Paginator[T]) TotalItems() int { return len(p.items) }

func (p *Paginator[T]) PageSize() int { return p.pageSize }

// GoTo 跳转到指定页，超出范围时取最近的有效页，返回实际页码。
func (p *Paginator[T]) GoTo(page int) int {
	p.current = Clamp(page, len(p.items), p.pageSize)
	return p.current
}

func (p *Paginator[T]) Next() int { return p.GoTo(p.current + 1) }

func (p *Paginator[T]) Prev() int { return p.GoTo(p.current - 1) }

func (p *Paginator[T]) HasNext() bool { return p.current < p.TotalPages() }

func (p *Paginator[T]) HasPrev() bool { return p.current > 1 }
