// Package academics holds the campus records served behind the auth
// pipeline: courses and their materials, announcements, attendance,
// enrollments, results and events.
//
// Handlers pass the normalized request bodies from the validation package to
// Service, which stamps ids, owners and times and hands the records to a
// Store. Batch writes skip duplicates; a batch where nothing was new fails
// with ErrNothingCreated.
package academics
