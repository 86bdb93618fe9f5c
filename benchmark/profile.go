package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/fogfactory/stagepipe"
)

// Profile generates a CPU profile of a chain of runners. It will be outputted in dir as
// stagepipe_{date}_d{depth}_n{items}.prof.
//
// - depth Number of chained runners, each sleeping 1ms per item.
// - items Number of items pushed in the first runner.
//
// Since runners work concurrently, the chain should take about (items + depth - 1) ms, against
// items * depth ms sequentially.
//
// use pprof to read the file (go install github.com/google/pprof@latest).
func Profile(dir string, depth, items int) (string, error) {
	if depth < 1 || items < 1 {
		return "", fmt.Errorf("depth and items must be positive, got %d and %d", depth, items)
	}
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("stagepipe_%s_d%d_n%d.prof",
		strings.ReplaceAll(time.Now().Truncate(time.Second).Format(time.DateTime), " ", "-"),
		depth, items)))
	if err != nil {
		return "", err
	}
	defer f.Close()

	pool, err := stagepipe.NewPool(0)
	if err != nil {
		return "", err
	}
	defer pool.Release()

	dumbProc := stagepipe.StageFunc[int, int](func(i int) int { time.Sleep(time.Millisecond); return i })
	runners, err := buildChain(pool, dumbProc, depth)
	if err != nil {
		return "", err
	}

	var wg sync.WaitGroup
	wg.Add(items)
	runners[len(runners)-1].OnCompletion(func(int) { wg.Done() })

	fmt.Println("totalCalls: ", depth*items, ", minimal seq duration:", time.Duration(depth*items)*time.Millisecond)

	func() {
		_ = pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()

		start := time.Now()
		for _, i := range lo.Range(items) {
			runners[0].Enqueue(i)
		}
		wg.Wait()
		fmt.Printf("(par: %s)\n", time.Since(start))
	}()

	val := 0
	start := time.Now()
	for i := 0; i < depth*items; i++ {
		val = dumbProc(val)
	}
	fmt.Printf("(seq: %s)\n", time.Since(start))
	for _, r := range runners {
		s := r.Snapshot()
		fmt.Printf("%s: avg %dms, samples %d\n", s.Name, s.AverageMillis, s.Samples)
	}
	fmt.Printf("profile:%s\n", f.Name())

	// Call pprof on a file
	// pprof -http=:8080 $file
	return f.Name(), nil
}

func buildChain(pool *stagepipe.Pool, stage stagepipe.Stage[int, int], depth int) ([]*stagepipe.Runner[int, int], error) {
	runners := make([]*stagepipe.Runner[int, int], 0, depth)
	for i := 0; i < depth; i++ {
		r, err := stagepipe.NewRunner(fmt.Sprintf("stage-%d", i), stage, stagepipe.WithPool(pool))
		if err != nil {
			detachAll(runners)
			return nil, err
		}
		runners = append(runners, r)
		if i > 0 {
			if err := stagepipe.Forward(runners[i-1], r); err != nil {
				detachAll(runners)
				return nil, err
			}
		}
	}
	return runners, nil
}

func detachAll(runners []*stagepipe.Runner[int, int]) {
	lo.ForEach(runners, func(r *stagepipe.Runner[int, int], _ int) { r.Detach() })
}
