package backtest

import "fmt"

// Window is one walk-forward fold in bar indices. Train is
// [TrainStart, TrainEnd) and Test is [TestStart, TestEnd); TestStart
// always equals TrainEnd, so the test slice begins strictly after every
// bar the model saw.
type Window struct {
	Index      int
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
}

// SplitWindows carves totalBars into rolling train/test folds advancing
// by stepBars. The last fold may carry a short test slice; folds whose
// test slice would be empty are dropped.
func SplitWindows(totalBars, trainBars, testBars, stepBars int) ([]Window, error) {
	if trainBars <= 0 || testBars <= 0 || stepBars <= 0 {
		return nil, fmt.Errorf("backtest: non-positive window sizes train=%d test=%d step=%d",
			trainBars, testBars, stepBars)
	}
	if totalBars < trainBars+testBars {
		return nil, fmt.Errorf("backtest: %d bars cannot fit one %d+%d window",
			totalBars, trainBars, testBars)
	}

	var windows []Window
	for start := 0; start+trainBars < totalBars; start += stepBars {
		trainEnd := start + trainBars
		testEnd := trainEnd + testBars
		if testEnd > totalBars {
			testEnd = totalBars
		}
		if testEnd <= trainEnd {
			break
		}
		windows = append(windows, Window{
			Index:      len(windows),
			TrainStart: start,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
		if testEnd == totalBars {
			break
		}
	}
	return windows, nil
}
