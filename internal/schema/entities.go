package schema

import (
	"regexp"

	"github.com/hitoshi/estatebase/internal/model"
)

// IDPattern はドキュメント識別子として許可する文字種。
// これ以外の文字を含むIDはストアへのクエリ注入を防ぐため拒否する。
var IDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SlugPattern はURLスラッグとして許可する形式。
var SlugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// emailPattern はメールアドレスの簡易形式チェック。
// 厳密なRFC検証ではなく、明らかな入力ミスを弾くことが目的。
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// 数値境界のリテラルをポインタ化するヘルパー。
func f64(f float64) *float64 { return &f }

// imageSpec は画像参照（アセットIDと代替テキスト）の配列要素仕様。
func imageSpec() *FieldSpec {
	return &FieldSpec{
		Kind: KindObject,
		Fields: Schema{
			"assetId": {Kind: KindReference, Required: true},
			"alt":     {Kind: KindString, MaxLen: 160},
		},
	}
}

// CitySchema は都市エンティティの検証スキーマ。
var CitySchema = Schema{
	"name":        {Kind: KindString, Required: true, MaxLen: 80},
	"slug":        {Kind: KindString, Required: true, MaxLen: 80, Pattern: SlugPattern},
	"state":       {Kind: KindString, MaxLen: 40},
	"description": {Kind: KindString, MaxLen: 5000, Sanitize: true},
	"heroImageId": {Kind: KindReference},
	"order":       {Kind: KindNumber, Min: f64(0), Max: f64(999)},
}

// NeighborhoodSchema はエリア（近隣地区）エンティティの検証スキーマ。
var NeighborhoodSchema = Schema{
	"name":        {Kind: KindString, Required: true, MaxLen: 80},
	"slug":        {Kind: KindString, Required: true, MaxLen: 80, Pattern: SlugPattern},
	"tagline":     {Kind: KindString, MaxLen: 160},
	"vibe":        {Kind: KindString, MaxLen: 160},
	"description": {Kind: KindString, MaxLen: 8000, Sanitize: true},
	"avgPrice":    {Kind: KindString, MaxLen: 40},
	"cityId":      {Kind: KindReference},
	"order":       {Kind: KindNumber, Min: f64(0), Max: f64(999)},
	"highlights": {
		Kind:     KindArray,
		MaxItems: 12,
		Elem: &FieldSpec{
			Kind: KindObject,
			Fields: Schema{
				"label": {Kind: KindString, Required: true, MaxLen: 80},
				"value": {Kind: KindString, MaxLen: 120},
			},
		},
	},
	"images": {Kind: KindArray, MaxItems: 20, Elem: imageSpec()},
}

// PropertyStatuses は物件の販売ステータスの列挙値。
var PropertyStatuses = []string{"active", "pending", "sold", "coming-soon"}

// PropertySchema は物件エンティティの検証スキーマ。
var PropertySchema = Schema{
	"title":          {Kind: KindString, Required: true, MaxLen: 120},
	"slug":           {Kind: KindString, MaxLen: 120, Pattern: SlugPattern},
	"status":         {Kind: KindEnum, Enum: PropertyStatuses},
	"price":          {Kind: KindNumber, Min: f64(0), Max: f64(1_000_000_000)},
	"beds":           {Kind: KindNumber, Min: f64(0), Max: f64(50)},
	"baths":          {Kind: KindNumber, Min: f64(0), Max: f64(50)},
	"sqft":           {Kind: KindNumber, Min: f64(0), Max: f64(100_000)},
	"address":        {Kind: KindString, MaxLen: 200},
	"description":    {Kind: KindString, MaxLen: 8000, Sanitize: true},
	"neighborhoodId": {Kind: KindReference},
	"featured":       {Kind: KindBool},
	"order":          {Kind: KindNumber, Min: f64(0), Max: f64(999)},
	"images":         {Kind: KindArray, MaxItems: 30, Elem: imageSpec()},
}

// DealStages はアクティブディールの取引ステージの列挙値。
var DealStages = []string{"offer", "under-contract", "inspection", "appraisal", "closing", "closed"}

// ActiveDealSchema はアクティブディール（進行中取引）エンティティの検証スキーマ。
// tenantDomainとclientEmailの組でクライアント照会に使用されるため、両方とも必須。
var ActiveDealSchema = Schema{
	"clientName":   {Kind: KindString, Required: true, MaxLen: 120},
	"clientEmail":  {Kind: KindString, Required: true, MaxLen: 254, Pattern: emailPattern},
	"tenantDomain": {Kind: KindString, Required: true, MaxLen: 253},
	"propertyId":   {Kind: KindReference},
	"stage":        {Kind: KindEnum, Enum: DealStages},
	"notes":        {Kind: KindString, MaxLen: 4000, Sanitize: true},
	"timeline": {
		Kind:     KindArray,
		MaxItems: 30,
		Elem: &FieldSpec{
			Kind: KindObject,
			Fields: Schema{
				"label": {Kind: KindString, Required: true, MaxLen: 120},
				"date":  {Kind: KindString, MaxLen: 40},
				"done":  {Kind: KindBool},
			},
		},
	},
}

// SiteSettingsSchema はサイト設定エンティティの検証スキーマ。
var SiteSettingsSchema = Schema{
	"agentName":    {Kind: KindString, MaxLen: 120},
	"brokerage":    {Kind: KindString, MaxLen: 120},
	"phone":        {Kind: KindString, MaxLen: 40},
	"email":        {Kind: KindString, MaxLen: 254, Pattern: emailPattern},
	"heroTitle":    {Kind: KindString, MaxLen: 160},
	"heroSubtitle": {Kind: KindString, MaxLen: 300},
	"heroImageId":  {Kind: KindReference},
	"about":        {Kind: KindString, MaxLen: 8000, Sanitize: true},
	"social": {
		Kind: KindObject,
		Fields: Schema{
			"instagram": {Kind: KindString, MaxLen: 200},
			"facebook":  {Kind: KindString, MaxLen: 200},
			"linkedin":  {Kind: KindString, MaxLen: 200},
			"youtube":   {Kind: KindString, MaxLen: 200},
		},
	},
}

// TestimonialSchema はお客様の声エンティティの検証スキーマ。
var TestimonialSchema = Schema{
	"author":  {Kind: KindString, Required: true, MaxLen: 120},
	"quote":   {Kind: KindString, Required: true, MaxLen: 2000},
	"context": {Kind: KindString, MaxLen: 160},
	"rating":  {Kind: KindNumber, Min: f64(1), Max: f64(5)},
	"order":   {Kind: KindNumber, Min: f64(0), Max: f64(999)},
}

// domainPattern は配信ドメインとして許可する形式。
// 正規化済み（小文字、ポートなし）のホスト名のみを受け付ける。
var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// TenantConfigSchema はテナント設定エンティティの検証スキーマ。
// domainはテナント解決のキーとなるため必須で、正規化済み形式のみ許可する。
var TenantConfigSchema = Schema{
	"domain":         {Kind: KindString, Required: true, MaxLen: 253, Pattern: domainPattern},
	"agentName":      {Kind: KindString, MaxLen: 120},
	"primaryColor":   {Kind: KindString, MaxLen: 20},
	"secondaryColor": {Kind: KindString, MaxLen: 20},
	"logoAssetId":    {Kind: KindReference},
	"contactEmail":   {Kind: KindString, MaxLen: 254, Pattern: emailPattern},
}

// ForDocType はドキュメントタイプに対応するスキーマを返す。
// 未知のタイプにはnilを返す。
func ForDocType(docType string) Schema {
	switch docType {
	case model.DocTypeCity:
		return CitySchema
	case model.DocTypeNeighborhood:
		return NeighborhoodSchema
	case model.DocTypeProperty:
		return PropertySchema
	case model.DocTypeActiveDeal:
		return ActiveDealSchema
	case model.DocTypeSiteSettings:
		return SiteSettingsSchema
	case model.DocTypeTestimonial:
		return TestimonialSchema
	case model.DocTypeTenantConfig:
		return TenantConfigSchema
	default:
		return nil
	}
}
