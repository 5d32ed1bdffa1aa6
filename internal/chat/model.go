package chat

// Gemini Model IDs
//
// | Model Name                  | API Model ID                  | Use Case                      |
// |-----------------------------|-------------------------------|-------------------------------|
// | Gemini 3 Flash (Preview)    | gemini-3-flash-preview        | Scripts and prompt rewriting  |
// | Imagen 4                    | imagen-4.0-generate-001       | Photorealistic text-to-image  |
// | Gemini 2.5 Flash Image      | gemini-2.5-flash-image        | Text-to-image via genai       |
// | Gemini 2.5 Flash TTS        | gemini-2.5-flash-preview-tts  | Single-speaker narration      |
const (
	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelImagen4 generates images through the SDK's GenerateImages call.
	ModelImagen4 = "imagen-4.0-generate-001"

	// ModelGemini25FlashImage generates images through generateContent.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini25FlashTTS renders speech from text.
	ModelGemini25FlashTTS = "gemini-2.5-flash-preview-tts"
)

// Defaults used when configuration does not name a model.
const (
	DefaultModelName       = ModelGemini3FlashPreview
	DefaultImagenModel     = ModelImagen4
	DefaultGeminiImageName = ModelGemini25FlashImage
	DefaultSpeechModel     = ModelGemini25FlashTTS
)
