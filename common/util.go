package common

import "os"

func PanicIfErr(err error) {
	if err != nil {
		panic(err)
	}
}

// Remove deletes a database file if it exists. Mostly useful in tests.
func Remove(file string) {
	_ = os.Remove(file)
}
