// Package dashboard holds the view models the dashboard renders from the
// query cache: the documentation browser and the profile panel.
//
// Views never block on the network directly. They read through a
// query.Boundary, so a failed load turns into a failed view state with a
// Retry that evicts exactly the failed keys, and an abandoned render (for
// example after the selection moved on) reports StateLoading.
package dashboard
