package agent

const examples = `- agenda cita con Ana proyecto Norte presencial mañana 3pm
- citas hoy
- citas 2025-06-12
- citas del 2025-06-01 al 2025-06-05
- buscar juan
- clientes
- proyectos
- modificar la cita con Ana
- cancelar
`

// HelpText is the static reply when no language model is available or it fails.
const HelpText = "Soy tu asistente de citas. Puedes pedirme, por ejemplo:\n" + examples
