package core

// Category is one of the fixed asset subdirectories under the output root.
type Category string

const (
	CategoryCSS    Category = "css"
	CategoryJS     Category = "js"
	CategoryImages Category = "images"
	CategoryFonts  Category = "fonts"
	CategoryVideos Category = "videos"
	CategoryOther  Category = "other"
)

// Categories lists every category in the order directories are created.
var Categories = []Category{
	CategoryCSS,
	CategoryJS,
	CategoryImages,
	CategoryFonts,
	CategoryVideos,
	CategoryOther,
}

// Resource represents a downloaded asset
type Resource struct {
	FinalURL    string
	File        string   // where the bytes were written
	LocalPath   string   // slash-separated, relative to the entry document's directory
	Category    Category
	ContentType string
	Size        int64
}

// Failure is a resolved URL whose fetch did not complete
type Failure struct {
	URL       string `json:"url" yaml:"url"`
	Reference string `json:"reference" yaml:"reference"`
	Error     string `json:"error" yaml:"error"`
}

// Stats holds the run counters. Fields only ever grow.
type Stats struct {
	TotalResources int   `json:"total_resources" yaml:"total_resources"`
	Downloaded     int   `json:"downloaded" yaml:"downloaded"`
	Failed         int   `json:"failed" yaml:"failed"`
	Aliased        int   `json:"aliased" yaml:"aliased"`
	Bytes          int64 `json:"bytes" yaml:"bytes"`
	CSSFiles       int   `json:"css_files" yaml:"css_files"`
	JSFiles        int   `json:"js_files" yaml:"js_files"`
	Images         int   `json:"images" yaml:"images"`
	Fonts          int   `json:"fonts" yaml:"fonts"`
	Videos         int   `json:"videos" yaml:"videos"`
	Other          int   `json:"other" yaml:"other"`
}

func (s *Stats) count(c Category) {
	switch c {
	case CategoryCSS:
		s.CSSFiles++
	case CategoryJS:
		s.JSFiles++
	case CategoryImages:
		s.Images++
	case CategoryFonts:
		s.Fonts++
	case CategoryVideos:
		s.Videos++
	default:
		s.Other++
	}
}
