package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"deskpet/core"
	"deskpet/factories"
	"deskpet/handlers/tts"
)

func init() {
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize text through the configured TTS backend",
		Args:  cobra.ExactArgs(1),
		Run:   runSpeak,
	}

	cmd.Flags().StringP("out", "o", "out.wav", "Output audio file")

	RootCmd.AddCommand(cmd)
}

func runSpeak(cmd *cobra.Command, args []string) {
	outPath, _ := cmd.Flags().GetString("out")
	settings := loadSettings()

	synth, err := factories.BuildSynthesizer(settings.TTS, core.GetLogger())
	if err != nil {
		exitErr("build synthesizer", err)
	}
	handler := tts.NewTTSHandler(synth, tts.DefaultConfig(), core.GetLogger())

	audio, err := handler.Speak(cmd.Context(), args[0])
	if err != nil {
		exitErr("synthesize", err)
	}
	if audio == nil {
		fmt.Println("nothing to speak after normalization")
		return
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		exitErr("write audio", err)
	}
	fmt.Printf("wrote %d bytes to %s\n", len(audio), outPath)
}
