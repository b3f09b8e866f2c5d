package util

import (
	"errors"
	"sort"
)

type ordered interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~string
}

// Concat combines multiple arrays of the same type into a single array
func Concat[T any](arrs ...[]T) []T {
	var out []T
	for _, arr := range arrs {
		out = append(out, arr...)
	}
	return out
}

// First returns the first element of haystack matching predicate and its index
func First[T any](haystack []T, predicate func(T) bool) (T, int, error) {
	for i, value := range haystack {
		if predicate(value) {
			return value, i, nil
		}
	}
	var zero T
	return zero, -1, errors.New("item not found in array")
}

func Filter[T any](arr []T, predicate func(T) bool) []T {
	var out []T
	for _, v := range arr {
		if predicate(v) {
			out = append(out, v)
		}
	}
	return out
}

func Map[T, U any](arr []T, fn func(T) U) []U {
	out := make([]U, len(arr))
	for i, v := range arr {
		out[i] = fn(v)
	}
	return out
}

// SortedKeys returns the keys of m in increasing order
func SortedKeys[K ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
