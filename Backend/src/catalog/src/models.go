package main

type Book struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Year      int64  `json:"year"`
	ISBN      string `json:"isbn"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
}
