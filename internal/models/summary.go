package models

import "time"

// Counters — счётчики одного прохода.
type Counters struct {
	// Seen — элементов разобрано из ленты.
	Seen int `json:"seen"`
	// Passed — прошли географический фильтр и фильтр свежести.
	Passed int `json:"passed"`
	// Created — новых записей создано.
	Created int `json:"created"`
	// Duplicates — пропущено как уже существующие.
	Duplicates int `json:"duplicates"`
	// Errors — поэлементные и источниковые ошибки.
	Errors int `json:"errors"`
}

// Add прибавляет other к c.
func (c *Counters) Add(other Counters) {
	c.Seen += other.Seen
	c.Passed += other.Passed
	c.Created += other.Created
	c.Duplicates += other.Duplicates
	c.Errors += other.Errors
}

// SourceSummary — итоги по одному источнику.
type SourceSummary struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Counters
	// FetchError — текст ошибки загрузки, если источник пропущен целиком.
	FetchError string `json:"fetch_error,omitempty"`
}

// RunSummary — единственный внешне наблюдаемый результат прогона
// (кроме самих записей). Источники, до которых прогон не дошёл
// из-за достижения targetNew, в Sources отсутствуют.
type RunSummary struct {
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	TargetNew     int             `json:"target_new"`
	TargetReached bool            `json:"target_reached"`
	Sources       []SourceSummary `json:"sources"`
	Total         Counters        `json:"total"`
}
