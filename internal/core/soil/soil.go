package soil

import "fmt"

// Class is the numeric soil code consumed by the recommender. Unknown (0) is a
// valid "unclassified" value, not an error.
type Class int

const (
	Unknown Class = iota
	Aluvial
	Andosol
	Entisol
	Humus
	Inceptisol
	Laterit
	Kapur
	Pasir
)

var names = []string{
	"Unknown", "Aluvial", "Andosol", "Entisol", "Humus",
	"Inceptisol", "Laterit", "Kapur", "Pasir",
}

var byLabel = func() map[string]Class {
	m := make(map[string]Class, len(names)-1)
	for c := Aluvial; c <= Pasir; c++ {
		m[c.Label()] = c
	}
	return m
}()

// Encode maps a classifier label such as "02-Andosol" to its class. Matching is
// exact; anything outside the table is Unknown.
func Encode(label string) Class {
	if c, ok := byLabel[label]; ok {
		return c
	}
	return Unknown
}

func Decode(code int) (Class, bool) {
	c := Class(code)
	if !c.Valid() {
		return Unknown, false
	}
	return c, true
}

// Labels returns the classifier labels in code order.
func Labels() []string {
	labels := make([]string, 0, len(names)-1)
	for c := Aluvial; c <= Pasir; c++ {
		labels = append(labels, c.Label())
	}
	return labels
}

func All() []Class {
	classes := make([]Class, 0, len(names))
	for c := Unknown; c <= Pasir; c++ {
		classes = append(classes, c)
	}
	return classes
}

func (c Class) Valid() bool {
	return c >= Unknown && c <= Pasir
}

func (c Class) Code() float32 {
	return float32(c)
}

func (c Class) Name() string {
	if !c.Valid() {
		return names[Unknown]
	}
	return names[c]
}

// Label is the classifier label for the class. Unknown has no classifier label
// and returns "".
func (c Class) Label() string {
	if c <= Unknown || c > Pasir {
		return ""
	}
	return fmt.Sprintf("%02d-%s", int(c), names[c])
}

func (c Class) String() string {
	return c.Name()
}
