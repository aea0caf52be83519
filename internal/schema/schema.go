// Package schema はエンティティごとの宣言的スキーマと汎用バリデーターを提供する。
// 管理APIの書き込みペイロードはすべてここを通過してからストアに渡される。
package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Kind はフィールドの種別を表す。
type Kind int

const (
	// KindString は文字列フィールド。MaxLen、Pattern、Sanitizeを適用できる。
	KindString Kind = iota + 1
	// KindNumber は数値フィールド。Min/Maxを閉区間として適用できる。
	KindNumber
	// KindBool は真偽値フィールド。
	KindBool
	// KindEnum は列挙フィールド。Enumに含まれない値を拒否する。
	KindEnum
	// KindObject はネストしたオブジェクトフィールド。Fieldsを再帰的に検証する。
	KindObject
	// KindArray は配列フィールド。Elemを各要素に適用し、MaxItemsを上限とする。
	// 要素がオブジェクトの場合は安定キー（_key）を保証する。
	KindArray
	// KindReference は他ドキュメントへのID参照フィールド。
	// IDの文字種（英数字・ハイフン・アンダースコア）を検証する。
	KindReference
)

// FieldSpec は1フィールドの検証仕様を表す。
type FieldSpec struct {
	Kind     Kind
	Required bool

	// 文字列用
	MaxLen   int
	Pattern  *regexp.Regexp
	Sanitize bool

	// 数値用（閉区間）
	Min *float64
	Max *float64

	// 列挙用
	Enum []string

	// オブジェクト用
	Fields Schema

	// 配列用
	Elem     *FieldSpec
	MaxItems int
}

// Schema はフィールド名から検証仕様へのマップ。
type Schema map[string]FieldSpec

// stableKeyField は配列要素オブジェクトに付与する安定キーのフィールド名。
const stableKeyField = "_key"

// Result は検証結果を表す。
// Errorsが空の場合のみDataをストアに渡してよい。
type Result struct {
	// Data は正規化済みペイロード。スキーマに無いフィールドは含まれない。
	Data map[string]any
	// Errors は「フィールド名: 理由」形式のエラーメッセージ全件。
	Errors []string
}

// OK は検証が成功したかを返す。
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// HTMLSanitizer はリッチテキストフィールドのサニタイズに使用するインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type HTMLSanitizer interface {
	Sanitize(rawHTML string) string
}

// Validator は宣言的スキーマに対するペイロード検証を行う。
// 検証は途中で打ち切らず、全フィールドのエラーを収集してから返す。
type Validator struct {
	sanitizer HTMLSanitizer
	newKey    func() string
}

// NewValidator はValidatorを生成する。
// sanitizerがnilの場合、Sanitize指定のフィールドは未加工のまま通過する。
func NewValidator(sanitizer HTMLSanitizer) *Validator {
	return &Validator{
		sanitizer: sanitizer,
		newKey:    generateStableKey,
	}
}

// Validate はペイロードをスキーマに対して検証し、正規化済みデータを返す。
// 必須フィールドの欠落はエラーとなる。作成操作で使用する。
func (v *Validator) Validate(s Schema, payload map[string]any) Result {
	return v.validate(s, payload, false)
}

// ValidatePartial は部分更新用の検証を行う。
// 供給されたフィールドのみ検証し、必須フィールドの欠落は許容する
// （マージ更新では欠落フィールドは既存値が維持されるため）。
func (v *Validator) ValidatePartial(s Schema, payload map[string]any) Result {
	return v.validate(s, payload, true)
}

// validate は検証の実体。スキーマに無いフィールドは黙って破棄し、
// ストアへのフィールド注入を防ぐ。
func (v *Validator) validate(s Schema, payload map[string]any, partial bool) Result {
	data := make(map[string]any)
	var errs []string

	// エラー順序を決定的にするためフィールド名でソートして走査する
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := s[name]

		value, exists := payload[name]
		if !exists || value == nil {
			if spec.Required && !partial {
				errs = append(errs, fmt.Sprintf("%s: 必須フィールドです", name))
			}
			continue
		}

		normalized, fieldErrs := v.validateField(name, spec, value)
		if len(fieldErrs) > 0 {
			errs = append(errs, fieldErrs...)
			continue
		}
		data[name] = normalized
	}

	return Result{Data: data, Errors: errs}
}

// validateField は1フィールドを検証し、正規化済みの値を返す。
func (v *Validator) validateField(name string, spec FieldSpec, value any) (any, []string) {
	switch spec.Kind {
	case KindString:
		return v.validateString(name, spec, value)
	case KindNumber:
		return validateNumber(name, spec, value)
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, []string{fmt.Sprintf("%s: 真偽値である必要があります", name)}
		}
		return b, nil
	case KindEnum:
		return validateEnum(name, spec, value)
	case KindReference:
		return validateReference(name, value)
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, []string{fmt.Sprintf("%s: オブジェクトである必要があります", name)}
		}
		nested := v.validate(spec.Fields, obj, true)
		if !nested.OK() {
			return nil, prefixErrors(name, nested.Errors)
		}
		return nested.Data, nil
	case KindArray:
		return v.validateArray(name, spec, value)
	default:
		return nil, []string{fmt.Sprintf("%s: 未知のフィールド種別です", name)}
	}
}

// validateString は文字列フィールドを検証する。
// Sanitize指定のフィールドはバリデーション通過後にサニタイズする。
func (v *Validator) validateString(name string, spec FieldSpec, value any) (any, []string) {
	s, ok := value.(string)
	if !ok {
		return nil, []string{fmt.Sprintf("%s: 文字列である必要があります", name)}
	}

	var errs []string
	if spec.MaxLen > 0 && utf8.RuneCountInString(s) > spec.MaxLen {
		errs = append(errs, fmt.Sprintf("%s: %d文字以内である必要があります", name, spec.MaxLen))
	}
	if spec.Pattern != nil && !spec.Pattern.MatchString(s) {
		errs = append(errs, fmt.Sprintf("%s: 形式が不正です（%s に一致する必要があります）", name, spec.Pattern.String()))
	}
	if len(errs) > 0 {
		return nil, errs
	}

	if spec.Sanitize && v.sanitizer != nil {
		s = v.sanitizer.Sanitize(s)
	}
	return s, nil
}

// validateNumber は数値フィールドを検証する。
// JSONデコード後のfloat64に加え、テスト・シードで扱いやすいようintも受け付ける。
func validateNumber(name string, spec FieldSpec, value any) (any, []string) {
	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil, []string{fmt.Sprintf("%s: 数値である必要があります", name)}
	}

	var errs []string
	if spec.Min != nil && f < *spec.Min {
		errs = append(errs, fmt.Sprintf("%s: %g以上である必要があります", name, *spec.Min))
	}
	if spec.Max != nil && f > *spec.Max {
		errs = append(errs, fmt.Sprintf("%s: %g以下である必要があります", name, *spec.Max))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return f, nil
}

// validateEnum は列挙フィールドを検証する。
func validateEnum(name string, spec FieldSpec, value any) (any, []string) {
	s, ok := value.(string)
	if !ok {
		return nil, []string{fmt.Sprintf("%s: 文字列である必要があります", name)}
	}
	for _, allowed := range spec.Enum {
		if s == allowed {
			return s, nil
		}
	}
	return nil, []string{fmt.Sprintf("%s: %q は許可された値ではありません（%s）", name, s, strings.Join(spec.Enum, ", "))}
}

// validateReference はID参照フィールドを検証する。
func validateReference(name string, value any) (any, []string) {
	s, ok := value.(string)
	if !ok {
		return nil, []string{fmt.Sprintf("%s: 文字列である必要があります", name)}
	}
	if !IDPattern.MatchString(s) {
		return nil, []string{fmt.Sprintf("%s: 参照IDの形式が不正です", name)}
	}
	return s, nil
}

// validateArray は配列フィールドを検証する。
// 要素がオブジェクトの場合、各要素に安定キー（_key）を保証する:
// 供給されたキーは維持し、欠落していれば生成する。同一配列内での重複は拒否する。
func (v *Validator) validateArray(name string, spec FieldSpec, value any) (any, []string) {
	arr, ok := value.([]any)
	if !ok {
		return nil, []string{fmt.Sprintf("%s: 配列である必要があります", name)}
	}
	if spec.MaxItems > 0 && len(arr) > spec.MaxItems {
		return nil, []string{fmt.Sprintf("%s: 要素数は%d以下である必要があります", name, spec.MaxItems)}
	}
	if spec.Elem == nil {
		return nil, []string{fmt.Sprintf("%s: 要素仕様が未定義です", name)}
	}

	var errs []string
	normalized := make([]any, 0, len(arr))
	seenKeys := make(map[string]bool)

	for i, elem := range arr {
		elemName := fmt.Sprintf("%s[%d]", name, i)

		// オブジェクト要素は検証前に供給済みの_keyを退避する
		// （_keyはスキーマ宣言外のため、そのままでは未知フィールドとして破棄される）
		var suppliedKey string
		if rawObj, isObj := elem.(map[string]any); isObj {
			if k, hasKey := rawObj[stableKeyField].(string); hasKey {
				suppliedKey = k
			}
		}

		elemValue, elemErrs := v.validateField(elemName, *spec.Elem, elem)
		if len(elemErrs) > 0 {
			errs = append(errs, elemErrs...)
			continue
		}

		if obj, isObj := elemValue.(map[string]any); isObj {
			key := suppliedKey
			if key == "" {
				key = v.uniqueKey(seenKeys)
			}
			if seenKeys[key] {
				errs = append(errs, fmt.Sprintf("%s: _key %q が重複しています", elemName, key))
				continue
			}
			seenKeys[key] = true
			obj[stableKeyField] = key
			elemValue = obj
		}

		normalized = append(normalized, elemValue)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return normalized, nil
}

// uniqueKey は配列内で未使用の安定キーを生成する。
func (v *Validator) uniqueKey(seen map[string]bool) string {
	for {
		key := v.newKey()
		if !seen[key] {
			return key
		}
	}
}

// generateStableKey はランダムな12文字の安定キーを生成する。
func generateStableKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// prefixErrors はネストしたフィールドのエラーに親フィールド名を付与する。
func prefixErrors(parent string, errs []string) []string {
	prefixed := make([]string, len(errs))
	for i, e := range errs {
		prefixed[i] = parent + "." + e
	}
	return prefixed
}
