package utils

import (
	"context"
	"sync/atomic"
	"testing"

	"go.viam.com/test"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, total := range []int{0, 1, 3, ParallelFactor, ParallelFactor*7 + 3} {
		seen := make([]int32, total)
		err := GroupWorkParallel(context.Background(), total, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			test.That(t, to-from, test.ShouldEqual, groupSize)
			return func(memberNum, workNum int) {
				atomic.AddInt32(&seen[workNum], 1)
			}, nil
		})
		test.That(t, err, test.ShouldBeNil)
		for _, count := range seen {
			test.That(t, count, test.ShouldEqual, 1)
		}
	}
}

func TestGroupWorkParallelPanic(t *testing.T) {
	err := ParallelForEachRow(context.Background(), 10, func(row int) {
		if row == 5 {
			panic("bad row")
		}
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad row")
}

func TestParallelForEachRowCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran int32
	err := ParallelForEachRow(ctx, 100, func(row int) {
		atomic.AddInt32(&ran, 1)
	})
	test.That(t, err, test.ShouldEqual, context.Canceled)
	test.That(t, ran, test.ShouldEqual, 0)
}
