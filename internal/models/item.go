// models содержит доменные сущности ingest-service.
// Эти типы используются парсером, фильтрами, обогащением,
// оркестратором, хранилищами и транспортом.
package models

import "time"

// FeedItem — нормализованный элемент ленты. Не сохраняется в БД:
// живёт в пределах одного прохода оркестратора.
type FeedItem struct {
	// Title — заголовок с декодированными сущностями.
	Title string
	// Link — каноническая ссылка, ключ дедупликации.
	Link string
	// PublishedAt — время публикации у источника (UTC).
	// Нулевое значение означает, что дату не удалось разобрать.
	PublishedAt time.Time
	// Excerpt — короткий текстовый тизер без HTML.
	Excerpt string
}

// SourceConfig — описание одного источника ленты.
type SourceConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	// CategoryHint — категория по умолчанию для материалов источника,
	// если ни одно правило классификатора не сработало.
	CategoryHint string `yaml:"category_hint"`
	// SourceType — тип источника для промпта генерации (news, press_release, blog...).
	SourceType string `yaml:"source_type"`
	// GeoKeywords — allow-list географических ключевых слов источника.
	// Пустой список означает «использовать глобальный pipeline.geo_keywords».
	GeoKeywords []string `yaml:"geo_keywords"`
}

// Enrichment — результат работы движка обогащения для одного элемента.
type Enrichment struct {
	InsightText string
	// InsightFallback — true, если текст получен усечением тизера,
	// а не от сервиса генерации.
	InsightFallback bool
	Category        string
	LocationLabel   string
	Tags            []string
}
