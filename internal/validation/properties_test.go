package validation

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/roach88/brokercheck/internal/ir"
	"github.com/roach88/brokercheck/internal/testutil"
)

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	return parameters
}

// For any offset sequence written by one producer to one partition, the
// validator reports exactly the positions where the offset dropped below
// its predecessor.
func TestProperty_OrderingReportsEveryRegression(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("regressions are reported one-for-one", prop.ForAll(
		func(offsets []int64) bool {
			v := NewOrdering()
			b := testutil.NewLogBuilder()

			var wantLines, gotLines []uint64
			for i, o := range offsets {
				log := b.Write("p1", "t", 0, ir.TopicPartitionOffset(o), nil, fmt.Sprint(i))
				if i > 0 && o < offsets[i-1] {
					wantLines = append(wantLines, log.Line)
				}
				for _, f := range v.ValidateEvent(log) {
					gotLines = append(gotLines, f.Line)
				}
			}
			return reflect.DeepEqual(wantLines, gotLines)
		},
		gen.SliceOf(gen.Int64Range(0, 40)),
	))

	properties.TestingRun(t)
}

// For any sets of written and read offsets carrying consistent content,
// the end-of-workload sweep reports exactly the one-sided offsets.
func TestProperty_IntegrityReconciliationIsComplete(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("one-sided offsets are reported at the end", prop.ForAll(
		func(written, read []int64) bool {
			v := NewIntegrity()
			b := testutil.NewLogBuilder()

			w := make(map[int64]bool)
			r := make(map[int64]bool)
			for _, o := range written {
				w[o] = true
				if len(v.ValidateEvent(b.Write("p1", "t", 0, ir.TopicPartitionOffset(o), nil, fmt.Sprint(o)))) != 0 {
					return false
				}
			}
			for _, o := range read {
				r[o] = true
				if len(v.ValidateEvent(b.Read("c1", "t", 0, ir.TopicPartitionOffset(o), nil, fmt.Sprint(o)))) != 0 {
					return false
				}
			}

			wantWrites, wantReads := 0, 0
			for o := range w {
				if !r[o] {
					wantWrites++
				}
			}
			for o := range r {
				if !w[o] {
					wantReads++
				}
			}

			gotWrites, gotReads := 0, 0
			for _, f := range v.ValidateEvent(b.End()) {
				switch f.Code {
				case ir.CodeWriteNeverRead:
					gotWrites++
				case ir.CodeReadNeverWritten:
					gotReads++
				default:
					return false
				}
			}
			return wantWrites == gotWrites && wantReads == gotReads
		},
		gen.SliceOf(gen.Int64Range(0, 30)),
		gen.SliceOf(gen.Int64Range(0, 30)),
	))

	properties.TestingRun(t)
}

// For any consistent key-to-partition assignment, partitioning never fires.
func TestProperty_PartitioningStableAssignment(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("stable keys are never reported", prop.ForAll(
		func(keys []int, partitions int) bool {
			v := NewPartitioning()
			b := testutil.NewLogBuilder()
			for i, k := range keys {
				partition := ir.TopicPartitionIndex(k % partitions)
				log := b.Read("c1", "t", partition, ir.TopicPartitionOffset(i), ir.Key(fmt.Sprint(k)), "p")
				if len(v.ValidateEvent(log)) != 0 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t)
}

// eventFromSeed maps an integer to one of a small space of events so that
// random sequences collide on topics, offsets, keys, and payloads.
func eventFromSeed(b *testutil.LogBuilder, seed int) ir.TestLogLine {
	partition := ir.TopicPartitionIndex(seed % 2)
	offset := ir.TopicPartitionOffset((seed / 2) % 6)
	key := ir.Key(fmt.Sprintf("k%d", (seed/12)%3))
	payload := fmt.Sprintf("m%d", (seed/36)%4)
	switch (seed / 144) % 5 {
	case 0, 1:
		return b.Write(fmt.Sprintf("p%d", seed%2), "t", partition, offset, key, payload)
	case 2, 3:
		return b.Read("c1", "t", partition, offset, key, payload)
	default:
		return b.End()
	}
}

// For any event sequence and split point, checkpoint and restore at the
// split is indistinguishable from an uninterrupted run.
func TestProperty_CheckpointEquivalence(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("resume from checkpoint matches straight run", prop.ForAll(
		func(seeds []int, split int) bool {
			b := testutil.NewLogBuilder()
			log := make([]ir.TestLogLine, len(seeds))
			for i, s := range seeds {
				log[i] = eventFromSeed(b, s)
			}
			if split > len(log) {
				split = len(log)
			}

			for _, name := range Names() {
				straight, _ := New(name)
				first, _ := New(name)

				var want, got []ir.ValidationFailure
				for _, l := range log[:split] {
					want = append(want, straight.ValidateEvent(l)...)
					got = append(got, first.ValidateEvent(l)...)
				}

				blob, err := first.SaveState()
				if err != nil {
					return false
				}
				resumed, _ := New(name)
				if err := resumed.LoadState(blob); err != nil {
					return false
				}

				for _, l := range log[split:] {
					want = append(want, straight.ValidateEvent(l)...)
					got = append(got, resumed.ValidateEvent(l)...)
				}
				if !reflect.DeepEqual(want, got) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 719)),
		gen.IntRange(0, 60),
	))

	properties.TestingRun(t)
}
