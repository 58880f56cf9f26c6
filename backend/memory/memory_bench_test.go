/**
 * Copyright 2020 TryFix Engineering.
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gmbyapa@gmail.com)
 */

package memory

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/tryfix/log"
	"github.com/tryfix/metrics"
)

func BenchmarkMemory_Set(b *testing.B) {
	backend := NewMemoryBackend(`bench`, log.NewNoopLogger(), metrics.NoopReporter())

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := backend.Set([]byte(`100`), []byte(`100`)); err != nil {
				b.Error(err)
			}
		}
	})
}

func BenchmarkMemory_Get(b *testing.B) {
	backend := NewMemoryBackend(`bench`, log.NewNoopLogger(), metrics.NoopReporter())
	numOfRecs := 100000
	for i := 1; i <= numOfRecs; i++ {
		if err := backend.Set([]byte(fmt.Sprint(i)), []byte(`100`)); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			k := fmt.Sprint(rand.Intn(numOfRecs-1) + 1)
			if _, err := backend.Get([]byte(k)); err != nil {
				b.Error(err)
			}
		}
	})
}
