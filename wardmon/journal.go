package wardmon

// Journaler describes an event logger. Implementations must be safe for
// concurrent use; every component of a wardmon instance shares one journaler.
type Journaler interface {
	Write(Event) error
}
