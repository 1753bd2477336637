package patterns

import "github.com/TrustPlaneAI/trustplane/pkg/model"

// =============================================================================
// PATTERN DEFINITIONS BY CATEGORY
// All patterns are registered here and compiled once at package init.
// Weights are signed: positive entries contribute risk evidence, negative
// entries are mitigating context. Labels are stable identifiers surfaced in
// matched-pattern lists and record tags.
// =============================================================================

// --- CBRN: chemical, biological, radiological, nuclear ---
func (r *Registry) registerCBRNPatterns() {
	cat := model.CategoryCBRN

	// Chemical weapons and synthesis
	r.register(cat, "nerve_agent_synthesis", `(synthesis|synthesize|manufacture|produce|create).{0,50}(nerve agent|VX|sarin|tabun|soman|novichok)`, 0.95, "Nerve agent synthesis inquiry")
	r.register(cat, "chemical_weapon_general", `(synthesis|production|manufacture).{0,50}(chemical|compound|substance).{0,30}(weapon|harmful|toxic|lethal)`, 0.85, "Harmful chemical production")
	r.register(cat, "precursor_inquiry", `(precursor|ingredient|component).{0,30}(chemical weapon|nerve agent|toxic agent)`, 0.8, "Chemical weapon precursor inquiry")
	r.register(cat, "home_synthesis", `(home.?lab|garage|basement).{0,50}(synthesis|production|manufacture).{0,30}(chemical|toxin|poison)`, 0.9, "Improvised synthesis setting")

	// Biological weapons and pathogens
	r.register(cat, "bioweapon_creation", `(weaponize|weaponization|aerosolize).{0,30}(pathogen|virus|bacteria|biological agent)`, 0.95, "Pathogen weaponization")
	r.register(cat, "dangerous_pathogen", `(culture|grow|cultivate|engineer).{0,50}(anthrax|smallpox|plague|ebola|engineered pathogen)`, 0.9, "Dangerous pathogen cultivation")
	r.register(cat, "pathogen_engineering", `(genetic modification|gene editing|CRISPR).{0,50}(increase virulence|enhance lethality|bypass immunity)`, 0.85, "Virulence enhancement")
	r.register(cat, "bioweapon_deployment", `(biological weapon|bioweapon|pathogen).{0,30}(disperse|spread|release|deploy)`, 0.9, "Biological agent dispersal")

	// Nuclear and radiological
	r.register(cat, "nuclear_enrichment", `(enrich|enrichment).{0,30}(uranium|plutonium|fissile material)`, 0.9, "Fissile material enrichment")
	r.register(cat, "nuclear_weapon", `(nuclear|atomic).{0,30}(weapon|bomb|device).{0,30}(build|construct|design|blueprint)`, 0.95, "Nuclear device construction")
	r.register(cat, "radiological_weapon", `(dirty bomb|radiological dispersal|radiation weapon)`, 0.85, "Radiological weapon")
	r.register(cat, "nuclear_technology", `(centrifuge cascade|isotope separation|nuclear fuel cycle).{0,30}(design|build|operate)`, 0.8, "Sensitive nuclear technology")

	// Dual-use concerns
	r.register(cat, "dual_use_acquisition", `(dual.?use|dual.?purpose).{0,30}(technology|equipment|material).{0,30}(acquire|purchase|obtain)`, 0.7, "Dual-use material acquisition")
	r.register(cat, "control_evasion", `(bypass|circumvent|evade).{0,30}(export control|sanctions|monitoring|detection)`, 0.75, "Export control evasion")

	// General indicators
	r.register(cat, "harm_intent", `(mass casualty|mass destruction|widespread harm|maximum damage)`, 0.6, "Mass harm intent")
	r.register(cat, "terrorist_context", `(terrorist|terrorism|extremist).{0,30}(chemical|biological|nuclear|radiological)`, 0.8, "Extremist CBRN context")

	// Mitigating context
	r.register(cat, "academic_context", `(chemistry|biology|nuclear).{0,20}(homework|assignment|research paper|thesis)`, -0.3, "Academic coursework context")
	r.register(cat, "fictional_context", `(fiction|novel|movie|game|story).{0,30}(chemical|biological|nuclear)`, -0.2, "Fictional framing")
	r.register(cat, "defensive_context", `(safety|security|defense|protection).{0,20}(against|from|measure)`, -0.2, "Defensive framing")
}

// --- SELF-HARM: handled with sensitivity; severity floors at medium ---
func (r *Registry) registerSelfHarmPatterns() {
	cat := model.CategorySelfHarm

	r.register(cat, "suicidal_ideation", `(kill|end|take).{0,20}(myself|my life|my own life)`, 0.95, "First-person suicidal ideation")
	r.register(cat, "suicide_planning", `(suicide|suicidal).{0,30}(plan|method|way|how to)`, 0.9, "Suicide planning")
	r.register(cat, "intent_expression", `(want to|going to|planning to).{0,20}(die|end it|not be here)`, 0.85, "Expressed intent")
	r.register(cat, "self_injury", `(self.?harm|hurt myself|cut myself|injure myself)`, 0.8, "Self-injury reference")
	r.register(cat, "method_mention", `(overdose|poison myself|hang myself|jump off)`, 0.9, "Method mention")
	r.register(cat, "despair_expression", `(worthless|hopeless|burden).{0,30}(better off|without me|dead)`, 0.75, "Despair expression")
	r.register(cat, "final_communication", `(final|last).{0,20}(message|goodbye|letter|note)`, 0.85, "Final communication")
	r.register(cat, "distress_expression", `(can't|cannot).{0,20}(go on|continue|take it|anymore)`, 0.7, "Acute distress")

	// Mitigating context
	r.register(cat, "help_seeking", `(help|support|resources|hotline|therapy|counseling)`, -0.3, "Help-seeking language")
	r.register(cat, "third_person", `(friend|family member|someone I know|patient|client)`, -0.2, "Third-person concern")
	r.register(cat, "academic_context", `(research|study|paper|article|statistics)`, -0.2, "Academic context")
	r.register(cat, "fictional_context", `(fiction|story|character|book|movie)`, -0.25, "Fictional framing")
	r.register(cat, "prevention_context", `(prevent|prevention|awareness|education)`, -0.2, "Prevention context")
}

// --- JAILBREAK: attempts to bypass or manipulate safety measures ---
func (r *Registry) registerJailbreakPatterns() {
	cat := model.CategoryJailbreak

	// Direct override attempts
	r.register(cat, "ignore_instructions", `ignore.{0,20}(previous|prior|all).{0,20}(instructions|rules|guidelines|constraints)`, 0.95, "Instruction override")
	r.register(cat, "disregard_safety", `disregard.{0,20}(safety|ethical|content).{0,20}(guidelines|rules|policies)`, 0.9, "Safety guideline dismissal")
	r.register(cat, "privileged_mode", `(developer|debug|admin|root).{0,20}mode`, 0.85, "Privileged mode request")

	// Role-play jailbreaks
	r.register(cat, "roleplay_jailbreak", `(you are now|act as|pretend to be).{0,30}(DAN|evil|unfiltered|unrestricted)`, 0.9, "Unrestricted persona roleplay")
	r.register(cat, "character_override", `(play|assume).{0,20}(character|role).{0,30}(no limits|no restrictions|no rules)`, 0.85, "Character without limits")
	r.register(cat, "hypothetical_bypass", `(hypothetical|theoretical).{0,30}(no safety|ignore ethics|break rules)`, 0.8, "Hypothetical framing bypass")

	// Token/prompt injection. Literal casing is part of the signal here, so
	// these two register case-sensitive.
	r.registerExact(cat, "tag_injection", `</?(system|instruction|safety)>`, 0.8, "Control tag injection")
	r.register(cat, "context_break", `\n\n\n.{0,50}(new conversation|start over|reset)`, 0.75, "Context reset attempt")
	r.registerExact(cat, "prompt_injection", `(### |>>> |\[INST\]|<\|im_start\|>)`, 0.7, "Chat template injection")

	// Common jailbreak names/methods
	r.register(cat, "known_jailbreak", `(DAN|Do Anything Now|STAN|DUDE|Unlocked)`, 0.85, "Known jailbreak persona")
	r.register(cat, "grandma_exploit", `(grandmother|grandma).{0,30}(used to tell|would say).{0,30}(how to)`, 0.8, "Grandma exploit")
	r.register(cat, "opposite_day", `opposite.{0,20}day|oppositeworld`, 0.75, "Opposite-day framing")

	// Encoding attempts
	r.register(cat, "encoding_attempt", `(base64|rot13|caesar|encode|cipher).{0,30}(decode|translate|convert)`, 0.7, "Encoding round-trip request")
	r.register(cat, "obfuscation", `(reverse|backward|mirror).{0,20}(text|writing|message)`, 0.65, "Text obfuscation")

	// Meta-prompting
	r.register(cat, "prompt_extraction", `(tell me|show me|reveal).{0,30}(system prompt|instructions|constraints)`, 0.8, "System prompt extraction")
	r.register(cat, "rule_extraction", `(what are|list).{0,20}(your rules|your limitations|restrictions)`, 0.7, "Rule enumeration")

	// Adversarial prefixes
	r.register(cat, "compliance_prefix", `^(Sure|Certainly|Of course).{0,10}(here's how|I'll explain)`, 0.6, "Forced compliance prefix")
	r.register(cat, "harmful_tutorial", `(step.?by.?step|detailed).{0,20}(instructions|guide).{0,30}(illegal|harmful|dangerous)`, 0.85, "Harmful tutorial request")

	// Mitigating context
	r.register(cat, "research_context", `(research|study|paper).{0,30}(AI safety|jailbreak|security)`, -0.3, "Safety research context")
	r.register(cat, "educational_context", `(example|demonstrate|explain).{0,30}(what not to do|bad prompt|security risk)`, -0.25, "Educational framing")
	r.register(cat, "testing_context", `(test|testing|evaluate).{0,30}(safety|security|robustness)`, -0.2, "Robustness testing context")
}

// --- EXPLOITATION: offensive cyber capability requests ---
func (r *Registry) registerExploitationPatterns() {
	cat := model.CategoryExploitation

	// Malware and exploit development
	r.register(cat, "malware_creation", `(write|create|generate|build).{0,40}(malware|ransomware|keylogger|rootkit|trojan)`, 0.9, "Malware authoring request")
	r.register(cat, "exploit_development", `(exploit|weaponize).{0,30}(vulnerability|cve|zero.?day)`, 0.85, "Exploit development")
	r.register(cat, "offensive_tooling", `(reverse shell|bind shell|meterpreter|command and control|c2 server)`, 0.85, "Offensive tooling")
	r.register(cat, "web_exploit", `(sql injection|xss|csrf).{0,40}(payload|bypass|exploit)`, 0.8, "Web attack payload")

	// Access and credential attacks
	r.register(cat, "credential_attack", `(crack|brute.?force).{0,30}(password|hash|credential)`, 0.75, "Credential attack")
	r.register(cat, "privilege_escalation", `(privilege escalation|escalate privileges).{0,40}(exploit|technique|bypass)`, 0.75, "Privilege escalation")
	r.register(cat, "phishing_campaign", `(phishing|spear.?phish).{0,30}(campaign|kit|template|email)`, 0.8, "Phishing campaign material")

	// Disruption and evasion
	r.register(cat, "ddos_attack", `(ddos|denial of service).{0,30}(attack|launch|tool|botnet)`, 0.8, "Denial-of-service attack")
	r.register(cat, "defense_evasion", `(bypass|evade|disable).{0,30}(antivirus|edr|detection|firewall)`, 0.8, "Security control evasion")
	r.register(cat, "covert_recon", `(scan|enumerate).{0,30}(network|target|ports).{0,30}(undetected|without permission|stealth)`, 0.7, "Unauthorized reconnaissance")

	// Mitigating context
	r.register(cat, "authorized_testing", `(ctf|capture the flag|pentest|penetration test).{0,40}(authorized|engagement|lab|practice)`, -0.3, "Authorized testing context")
	r.register(cat, "defensive_context", `(defend|defense|patch|mitigate|remediate|harden)`, -0.2, "Defensive framing")
	r.register(cat, "educational_context", `(course|class|certification|training|coursework)`, -0.2, "Security education context")
}
