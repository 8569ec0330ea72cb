package utils

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

type (
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// GroupWorkParallel splits totalSize work items into contiguous groups and runs each group on
// its own goroutine. Groups never overlap so members may write to disjoint slots of a shared
// slice without locking. The context is checked before each member runs; a cancelled context
// stops remaining members and its error is returned. A panic inside a group is returned as an
// error once all groups are done.
func GroupWorkParallel(ctx context.Context, totalSize int, groupWork GroupWorkFunc) error {
	if totalSize <= 0 {
		return nil
	}
	numGroups := ParallelFactor
	if totalSize < numGroups {
		numGroups = totalSize
	}
	groupSize := totalSize / numGroups
	extra := totalSize % numGroups

	var (
		wait     sync.WaitGroup
		panicMu  sync.Mutex
		panicErr error
	)
	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		groupNumCopy := groupNum
		utils.PanicCapturingGoWithCallback(func() {
			runGroup(ctx, groupNumCopy, numGroups, groupSize, extra, groupWork)
			wait.Done()
		}, func(err interface{}) {
			panicMu.Lock()
			if panicErr == nil {
				panicErr = errors.Errorf("panic during parallel work: %v", err)
			}
			panicMu.Unlock()
			wait.Done()
		})
	}
	wait.Wait()
	if panicErr != nil {
		return panicErr
	}
	return ctx.Err()
}

func runGroup(ctx context.Context, groupNum, numGroups, groupSize, extra int, groupWork GroupWorkFunc) {
	thisGroupSize := groupSize
	if groupNum == numGroups-1 {
		thisGroupSize += extra
	}
	from := groupSize * groupNum
	to := from + thisGroupSize
	memberWork, groupWorkDone := groupWork(groupNum, thisGroupSize, from, to)
	if memberWork != nil {
		memberNum := 0
		for workNum := from; workNum < to; workNum++ {
			if ctx.Err() != nil {
				return
			}
			memberWork(memberNum, workNum)
			memberNum++
		}
	}
	if groupWorkDone != nil {
		groupWorkDone()
	}
}

// ParallelForEachRow calls f once for every row in [0, rows), spreading rows over
// ParallelFactor goroutines.
func ParallelForEachRow(ctx context.Context, rows int, f func(row int)) error {
	return GroupWorkParallel(ctx, rows, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
		return func(memberNum, workNum int) {
			f(workNum)
		}, nil
	})
}
