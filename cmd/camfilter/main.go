// camfilter: live camera preview with a selectable image filter
package main

func main() {
	Execute()
}
