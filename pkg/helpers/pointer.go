package helpers

// ToPointer returns a pointer to a copy of v, for the optional fields of the
// settings structs.
func ToPointer[T any](v T) *T {
	return &v
}
