package websocket

import "math/rand/v2"

// loadingMessages are pushed to connected clients while they wait for
// server-side work. Tone borrowed from classic game loading screens.
var loadingMessages = []string{
	"Reticulating splines...",
	"Generating witty dialog...",
	"Swapping time and space...",
	"Spinning violently around the y-axis...",
	"Tokenizing real life...",
	"Bending the spoon...",
	"Filtering morale...",
	"Have a good day.",
	"Upgrading Windows, your PC will restart several times.",
	"640K ought to be enough for anybody",
	"The architects are still drafting",
	"We need a new fuse...",
	"The server is powered by a lemon and two electrodes.",
	"We're testing your patience",
	"Don't think of purple hippos...",
	"Follow the white rabbit",
	"Why don't you order a sandwich?",
	"The bits are flowing slowly today",
	"Dig on the 'X' for buried treasure... ARRR!",
	"It's still faster than you could draw it",
}

// RandomLoadingMessage returns one of the canned loading messages
func RandomLoadingMessage() string {
	return loadingMessages[rand.IntN(len(loadingMessages))]
}
