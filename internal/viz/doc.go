// Package viz renders simulation output for the terminal: styled headers and
// key/value blocks, matrices, run tables and time-series plots.
//
// Colors come from a [Theme]; [SetTheme] switches the palette used by every
// style in the package.
package viz
