package router

import (
	"fmt"
	"testing"
)

// BenchmarkTableResolveStatic benchmarks matching a static route.
func BenchmarkTableResolveStatic(b *testing.B) {
	table := MustBuild("/", "/about", "/contact", "/pricing", "/features")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Resolve("/about")
	}
}

// BenchmarkTableResolveParam benchmarks matching a captured route.
func BenchmarkTableResolveParam(b *testing.B) {
	table := MustBuild("/posts/{id}")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Resolve("/posts/123")
	}
}

// BenchmarkTableResolveMiss benchmarks a path that matches nothing.
func BenchmarkTableResolveMiss(b *testing.B) {
	table := MustBuild("/posts/{id}", "/about")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Resolve("/posts/123/extra")
	}
}

// BenchmarkTableResolveMany benchmarks matching in a wide table.
func BenchmarkTableResolveMany(b *testing.B) {
	patterns := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		patterns = append(patterns, fmt.Sprintf("/section%d/{id}", i))
	}
	table := MustBuild(patterns...)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Resolve("/section99/42")
	}
}
