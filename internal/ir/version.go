package ir

// EngineVersion is the conteo release reported by the CLI.
const EngineVersion = "0.1.0"
