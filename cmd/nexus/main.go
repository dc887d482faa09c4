// Command nexus is a CLI front end over the embeddable nexus search engine.
package main

func main() {
	Execute()
}
