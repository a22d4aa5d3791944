package story

// SystemInstruction фиксированная инструкция для текстовой модели. Требования к
// содержимому (персонаж, стиль) живут только в тексте и программно не проверяются.
const SystemInstruction = `You are a comic story generator. Generate a 3-panel comic story about a dog's adventure.
IMPORTANT: Respond ONLY with a JSON object in this exact format:
{
  "comics": [
    {
      "prompt": "Image generation prompt here that MUST include 'sebi brown dog' and end with 'realistic style, contrasting colors'",
      "caption": "Caption text here that refers to the male dog as 'sebi'"
    }
  ]
}
Do not include any other text or explanation in your response.`
