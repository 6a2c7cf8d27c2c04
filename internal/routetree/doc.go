// Package routetree builds the immutable tree of segments for one route and
// plans which navigations into it must be validated.
//
// Each segment may carry a module (a layout or a page) and that module may
// declare an instant config: either "may block" (false) or a prefetch mode
// under which navigating to the segment must render something immediately.
//
// FindNavigationsToValidate walks the tree depth-first, threading the list
// of candidate navigation parents through the recursion by value. A blocking
// config clears the list; layouts are pushed onto it after their own check,
// because layouts are shared across sibling navigations. Configs found inside
// parallel slots are reported as unsupported and produce no tasks.
package routetree
