// Package runner executes a recipe's step stream one step at a time.
//
// The main components are:
//   - Item / Flatten: normalize arbitrarily nested step descriptions into a
//     flat ordered sequence, assigning seed-step grouping metadata
//   - Producer: the pull-based generator contract for recipes that react to
//     prior results
//   - RenderStep / BindPlaceholders: expand command-line placeholders before
//     execution and bind their harvested outputs onto results afterwards
//   - Executor: the subprocess execution sink
//   - Runner: the orchestration loop tying the above together, tracking the
//     cumulative failure state and the run's StepHistory
//
// Control flow is single-threaded and synchronous by design: steps execute
// strictly one at a time, and the only shared mutable state (the step
// history) has the loop as its single writer.
package runner
