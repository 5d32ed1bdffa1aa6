package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// PromptForTopic asks the user for a video topic on stdin. It returns an
// empty string when nothing usable was entered.
func PromptForTopic() string {
	return promptForTopic(os.Stdin, os.Stdout)
}

func promptForTopic(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "Video topic: ")

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		log.Warn().Err(err).Msg("Failed to read topic")
		return ""
	}
	return strings.TrimSpace(input)
}
