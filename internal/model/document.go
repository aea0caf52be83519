package model

import "time"

// ドキュメントタイプ。外部ストアに保存されるエンティティの種別を表す。
const (
	DocTypeCity         = "city"
	DocTypeNeighborhood = "neighborhood"
	DocTypeProperty     = "property"
	DocTypeActiveDeal   = "activeDeal"
	DocTypeSiteSettings = "siteSettings"
	DocTypeTestimonial  = "testimonial"
	DocTypeTenantConfig = "tenantConfig"
)

// Document はドキュメントストア上の1レコードを表す。
// IDはストアが作成時に採番し、以後安定である。
// Dataはスキーマ検証済みのフィールド集合で、ストア層は内容を解釈しない。
type Document struct {
	ID        string
	Type      string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}
