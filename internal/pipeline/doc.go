// Package pipeline runs report stages in the order given by a declarative
// configuration.
//
// A run has two phases. Driver.Build turns an ordered list of
// model.StageConfig into a Plan by asking the Registry for one fresh Stage
// per position. A single Sink instance is shared by every Sink position, and
// the compress flag picks the Sink factory once. Driver.Run then visits the
// positions in order with PreExecute, Execute and AfterExecute, writing into
// one shared model.ResultBuffer.
//
// Producers that cannot emit all their output at once return
// model.StatusMoreData from AfterExecute. If they are loop-eligible, the
// driver remembers their position and, once the next Sink or GroupMarker
// finishes, rewinds to the most recent such position. Every stage between
// the Producer and the Sink runs again for the next chunk, so peak memory
// stays bounded to one chunk.
//
// The driver is a step function: each step returns Advance, RepeatFrom or
// Stop, and the outer loop only moves the index. The rewind rule lives in
// the pure function decide so it can be tested without real stages.
//
// A failing stage is skipped for that pass and never aborts the run. Every
// instantiated stage is Reset exactly once when the run ends, whether it
// completed, failed or was cancelled.
package pipeline
