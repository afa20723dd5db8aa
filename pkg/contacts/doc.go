// Package contacts defines the contact record owned by each user, input
// validation for it, and the upcoming birthday filter.
package contacts
