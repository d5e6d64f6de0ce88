// Вспомогательные функции для работы с данными, часто используемые в различных
// частях приложения. Включает в себя преобразования между слайсами и множествами,
// а также полезные утилиты для обработки данных.
//
// Основные возможности:
//   - Преобразование слайсов в множества (map[T]struct{}).
//   - Проверка наличия элементов множества в другом множестве или слайсе.
//   - Преобразование слайсов в слайсы другого типа с применением функции.
package utils

func ToPtr[T any](v T) *T {
	return &v
}

func SliceToSet[T comparable](ids []T) map[T]struct{} {
	res := make(map[T]struct{})
	for _, id := range ids {
		res[id] = struct{}{}
	}
	return res
}

func CheckInSet[T comparable](set map[T]struct{}, all ...T) bool {
	for _, el := range all {
		if _, ok := set[el]; ok {
			return true
		}
	}
	return false
}

func CheckInSlice[T comparable](in []T, all ...T) bool {
	set := SliceToSet(in)
	return CheckInSet(set, all...)
}

func SliceToSlice[T any, U any](in *[]T, f func(*T) U) []U {
	if in == nil {
		return make([]U, 0)
	}
	out := make([]U, len(*in))
	for i, v := range *in {
		out[i] = f(&v)
	}
	return out
}

func SetToSlice[T comparable](in map[T]struct{}) []T {
	var out []T
	for k := range in {
		out = append(out, k)
	}
	return out
}

