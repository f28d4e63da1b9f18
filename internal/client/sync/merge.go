package sync

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/iudanet/chatkeeper/internal/models"
)

// Strategy определяет правило слияния одного поля
type Strategy int

// Закрытый набор стратегий слияния полей
const (
	// StrategyLWW берет значение стороны с большим modifiedAt,
	// при равенстве выигрывает локальная сторона
	StrategyLWW Strategy = iota

	// StrategyOr булево ИЛИ: флаг, который может только взводиться
	// (например, favorite)
	StrategyOr

	// StrategyAnd булево И: удаление считается окончательным только
	// когда обе стороны уже согласны — защита от воскрешения записи
	StrategyAnd

	// StrategyUnion объединение массивов без дубликатов, порядок
	// local-then-remote по первому появлению
	StrategyUnion

	// StrategyMax больший из двух числовых значений (счетчики)
	StrategyMax

	// StrategyMin меньший из двух числовых значений ("раньше выигрывает")
	StrategyMin
)

// String возвращает имя стратегии
func (s Strategy) String() string {
	switch s {
	case StrategyLWW:
		return "lww"
	case StrategyOr:
		return "or"
	case StrategyAnd:
		return "and"
	case StrategyUnion:
		return "union"
	case StrategyMax:
		return "max"
	case StrategyMin:
		return "min"
	default:
		return "unknown"
	}
}

// StrategyTable реестр стратегий по имени поля
type StrategyTable map[string]Strategy

// DefaultStrategies возвращает таблицу стратегий по умолчанию для
// типа сущности. Незарегистрированное поле — единая default-политика:
// оно фиксируется как конфликтующее (см. Merge).
func DefaultStrategies(entityType string) StrategyTable {
	switch entityType {
	case models.EntityTypeConversation:
		return StrategyTable{
			"title":         StrategyLWW,
			"source":        StrategyLWW,
			"favorite":      StrategyOr,
			"tags":          StrategyUnion,
			"message_count": StrategyMax,
			"updated_at":    StrategyMax,
			"deleted":       StrategyAnd,
		}
	case models.EntityTypeMessage:
		return StrategyTable{
			"role":        StrategyLWW,
			"content":     StrategyLWW,
			"attachments": StrategyUnion,
			"updated_at":  StrategyMax,
			"deleted":     StrategyAnd,
		}
	default:
		return StrategyTable{}
	}
}

// mergeSkipFields идентификационные поля, исключенные из слияния:
// id, родительские ключи и время создания никогда не сливаются
var mergeSkipFields = map[string]struct{}{
	"id":              {},
	"conversation_id": {},
	"created_at":      {},
}

// MergeInput вход чистой функции слияния: обе записи в плоском виде
// плюс их локальные timestamps последнего изменения
type MergeInput struct {
	Local            map[string]any
	Remote           map[string]any
	Strategies       StrategyTable
	LocalModifiedAt  time.Time
	RemoteModifiedAt time.Time
}

// MergeResult результат слияния одной пары записей
type MergeResult struct {
	// Merged слитая запись
	Merged map[string]any

	// ConflictFields имена полей без зарегистрированной стратегии,
	// значения которых различаются (отсортированы)
	ConflictFields []string

	// NeedsUserResolution true, если хотя бы одно поле конфликтует
	NeedsUserResolution bool
}

// Merge выполняет пословное (field-level) слияние пары локальная/удаленная
// запись. Функция чистая: без побочных эффектов, состояния и I/O.
//
// Для каждого ключа, присутствующего на любой из сторон, кроме
// идентификационного skip-list:
//   - глубоко-равные значения остаются как есть;
//   - иначе применяется зарегистрированная стратегия;
//   - поле без стратегии фиксируется как конфликтующее, а результат
//     помечается NeedsUserResolution.
func Merge(in MergeInput) MergeResult {
	result := MergeResult{
		Merged: make(map[string]any, len(in.Local)+len(in.Remote)),
	}

	// Сохраняем идентификационные поля локальной стороны
	// (у отсутствующей локальной записи их добавит вызывающий код)
	for key := range mergeSkipFields {
		if v, ok := in.Local[key]; ok {
			result.Merged[key] = v
		} else if v, ok := in.Remote[key]; ok {
			result.Merged[key] = v
		}
	}

	for _, key := range unionKeys(in.Local, in.Remote) {
		if _, skip := mergeSkipFields[key]; skip {
			continue
		}

		local, hasLocal := in.Local[key]
		remote, hasRemote := in.Remote[key]

		// Равные значения не требуют стратегии
		if hasLocal && hasRemote && deepEqual(local, remote) {
			result.Merged[key] = local
			continue
		}

		strategy, registered := in.Strategies[key]
		if !registered {
			// Единая default-политика: незарегистрированное поле —
			// конфликт, локальное значение остается
			if hasLocal {
				result.Merged[key] = local
			}
			result.ConflictFields = append(result.ConflictFields, key)
			result.NeedsUserResolution = true
			continue
		}

		merged, keep := applyStrategy(strategy, local, hasLocal, remote, hasRemote,
			in.LocalModifiedAt, in.RemoteModifiedAt)
		if keep {
			result.Merged[key] = merged
		}
	}

	sort.Strings(result.ConflictFields)
	return result
}

// applyStrategy сливает одно поле. Возвращаемый keep=false означает,
// что поле отсутствует в результате (выигравшая сторона его не имела).
func applyStrategy(strategy Strategy, local any, hasLocal bool, remote any, hasRemote bool,
	localModified, remoteModified time.Time,
) (any, bool) {
	switch strategy {
	case StrategyOr:
		return truthy(local) || truthy(remote), true
	case StrategyAnd:
		return truthy(local) && truthy(remote), true
	case StrategyUnion:
		return unionValues(local, remote), true
	case StrategyMax, StrategyMin:
		return mergeNumeric(strategy, local, hasLocal, remote, hasRemote)
	default: // StrategyLWW
		// Ничья разрешается в пользу локальной стороны
		if remoteModified.After(localModified) {
			return remote, hasRemote
		}
		return local, hasLocal
	}
}

// mergeNumeric сравнивает упорядочиваемые значения: RFC3339 timestamps,
// числа (числовые строки коэрцируются). Min используется для
// "раньше выигрывает" timestamps, Max — для счетчиков и "позже выигрывает".
func mergeNumeric(strategy Strategy, local any, hasLocal bool, remote any, hasRemote bool) (any, bool) {
	switch {
	case !hasLocal && !hasRemote:
		return nil, false
	case !hasLocal:
		return remote, true
	case !hasRemote:
		return local, true
	}

	cmp, ok := compareOrdered(local, remote)
	if !ok {
		// Значения несравнимы — оставляем локальное
		return local, true
	}
	if (strategy == StrategyMax && cmp < 0) || (strategy == StrategyMin && cmp > 0) {
		return remote, true
	}
	return local, true
}

// compareOrdered сравнивает два значения: сперва как RFC3339 timestamps,
// затем как числа. Возвращает знак сравнения local относительно remote.
func compareOrdered(local, remote any) (int, bool) {
	if lt, rt, ok := toTimes(local, remote); ok {
		return lt.Compare(rt), true
	}

	lv, lok := toFloat(local)
	rv, rok := toFloat(remote)
	if !lok || !rok {
		return 0, false
	}
	switch {
	case lv < rv:
		return -1, true
	case lv > rv:
		return 1, true
	default:
		return 0, true
	}
}

// toTimes пытается разобрать обе стороны как RFC3339 timestamps
func toTimes(a, b any) (time.Time, time.Time, bool) {
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return time.Time{}, time.Time{}, false
	}
	at, errA := time.Parse(time.RFC3339Nano, as)
	bt, errB := time.Parse(time.RFC3339Nano, bs)
	if errA != nil || errB != nil {
		return time.Time{}, time.Time{}, false
	}
	return at, bt, true
}

// unionValues вычисляет объединение массивов без дубликатов,
// порядок local-then-remote по первому появлению. Объекты
// сравниваются структурно.
func unionValues(local, remote any) []any {
	union := make([]any, 0)
	var seen [][]byte

	appendUnique := func(v any) {
		key, err := json.Marshal(v)
		if err != nil {
			return
		}
		for _, s := range seen {
			if bytes.Equal(s, key) {
				return
			}
		}
		seen = append(seen, key)
		union = append(union, v)
	}

	for _, v := range toSlice(local) {
		appendUnique(v)
	}
	for _, v := range toSlice(remote) {
		appendUnique(v)
	}
	return union
}

// deepEqual сравнивает значения по их сериализованной форме
func deepEqual(a, b any) bool {
	da, errA := json.Marshal(a)
	db, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(da, db)
}

// truthy трактует значение как булев флаг
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return false
	}
}

// toFloat приводит значение к числу; числовые строки коэрцируются
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// toSlice приводит значение к слайсу
func toSlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		result := make([]any, len(t))
		for i, s := range t {
			result[i] = s
		}
		return result
	default:
		return []any{t}
	}
}

// unionKeys возвращает отсортированное объединение ключей обеих сторон
func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
