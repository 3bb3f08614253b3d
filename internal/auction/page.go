package auction

// DefaultPageSize is how many auctions a listing page shows.
const DefaultPageSize = 9

// Page is one page of a listing. Number is 1-based and clamped to
// [1, Pages]; an empty listing has one empty page.
type Page struct {
	Number int       `json:"page"`
	Pages  int       `json:"pages"`
	Size   int       `json:"size"`
	Total  int       `json:"total"`
	Items  []Summary `json:"auctions"`
}

// Paginate returns page number of list. A non-positive size means
// DefaultPageSize.
func Paginate(list []Summary, number, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := max(1, (len(list)+size-1)/size)
	number = min(max(number, 1), pages)

	start := (number - 1) * size
	end := min(start+size, len(list))
	items := make([]Summary, 0, end-start)
	items = append(items, list[start:end]...)
	return Page{Number: number, Pages: pages, Size: size, Total: len(list), Items: items}
}
